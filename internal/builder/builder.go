// Package builder 从用户提交的部分字段构造完整、内部一致的闹钟实体：
// 补默认值 → 校验（累积全部错误，不短路）→ 纯构造。
package builder

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"waketime/internal/clock"
	"waketime/internal/config"
	"waketime/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidationErrors 校验错误集合（一次返回全部问题，UI 整体展示）
type ValidationErrors []string

// Error 实现 error 接口
func (e ValidationErrors) Error() string {
	return fmt.Sprintf("invalid alarm payload: %s", strings.Join(e, "; "))
}

// Builder 闹钟构建器
type Builder struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewBuilder 创建闹钟构建器
func NewBuilder(cfg *config.Config, logger *zap.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Normalize 就地补默认值（label、音量、震动、贪睡、围栏半径等）
func (b *Builder) Normalize(p *models.AlarmPayload) {
	if p.IsEnabled == nil {
		enabled := true
		p.IsEnabled = &enabled
	}
	if p.Volume == nil {
		v := b.cfg.Store.DefaultVolume
		p.Volume = &v
	}
	if p.Vibrate == nil {
		vib := true
		p.Vibrate = &vib
	}
	if p.SnoozeEnabled == nil {
		sn := true
		p.SnoozeEnabled = &sn
	}
	if p.SnoozeMinutes == nil {
		m := b.cfg.Store.SnoozeMinutes
		p.SnoozeMinutes = &m
	}
	if p.MaxSnoozes == nil {
		m := b.cfg.Store.MaxSnoozes
		p.MaxSnoozes = &m
	}
	if p.Sound == nil {
		p.Sound = &models.Sound{Name: b.cfg.Playback.DefaultSoundSource, IsDefault: true}
	}

	if p.Location != nil {
		if p.Location.RadiusMeters == 0 {
			p.Location.RadiusMeters = b.cfg.Store.RadiusMeters
		}
		if p.Location.TimeBeforeArrivalMin == nil {
			lead := b.cfg.Store.ArrivalLeadMin
			p.Location.TimeBeforeArrivalMin = &lead
		}
		if p.Location.RepeatType == "" {
			p.Location.RepeatType = models.RepeatOnce
		}
	}

	if strings.TrimSpace(p.Label) == "" {
		p.Label = b.defaultLabel(p)
	}
}

// defaultLabel 根据类型与重复日生成默认标签
func (b *Builder) defaultLabel(p *models.AlarmPayload) string {
	switch p.Type {
	case models.AlarmTypeTime:
		if p.Time != nil && len(p.Time.RepeatDays) > 0 {
			return RepeatDaysLabel(p.Time.RepeatDays)
		}
		return "Alarm"
	case models.AlarmTypeSleep:
		if p.Sleep != nil && len(p.Sleep.RepeatDays) > 0 {
			return RepeatDaysLabel(p.Sleep.RepeatDays)
		}
		return "Sleep schedule"
	case models.AlarmTypeLocation:
		if p.Location != nil && p.Location.Target.Name != "" {
			return p.Location.Target.Name
		}
		return "Location alarm"
	}
	return "Alarm"
}

// Validate 校验负载，累积返回所有违例；合法时返回 nil
func (b *Builder) Validate(p *models.AlarmPayload) ValidationErrors {
	var errs ValidationErrors

	if !p.Type.Valid() {
		errs = append(errs, fmt.Sprintf("unknown alarm type %q", p.Type))
	}

	label := strings.TrimSpace(p.Label)
	if label == "" {
		errs = append(errs, "label must not be empty")
	} else if utf8.RuneCountInString(label) > b.cfg.Store.LabelMaxLen {
		// 按字符数而不是字节数：多字节标签（如中文）同样享有 50 字符
		errs = append(errs, fmt.Sprintf("label must be at most %d characters", b.cfg.Store.LabelMaxLen))
	}

	if p.Volume != nil && (*p.Volume < 0 || *p.Volume > 1) {
		errs = append(errs, "volume must be between 0 and 1")
	}
	if p.SnoozeMinutes != nil && *p.SnoozeMinutes <= 0 {
		errs = append(errs, "snooze duration must be greater than 0")
	}
	if p.MaxSnoozes != nil && *p.MaxSnoozes < 0 {
		errs = append(errs, "max snooze count must not be negative")
	}

	variants := 0
	if p.Time != nil {
		variants++
	}
	if p.Sleep != nil {
		variants++
	}
	if p.Location != nil {
		variants++
	}
	if variants != 1 {
		errs = append(errs, "exactly one alarm variant must be provided")
	}

	switch p.Type {
	case models.AlarmTypeTime:
		if p.Time == nil {
			errs = append(errs, "time alarm fields are missing")
		} else {
			errs = append(errs, validateTimeOfDay("time", p.Time.TimeOfDay)...)
			errs = append(errs, validateRepeatDays(p.Time.RepeatDays)...)
		}
	case models.AlarmTypeSleep:
		if p.Sleep == nil {
			errs = append(errs, "sleep alarm fields are missing")
		} else {
			errs = append(errs, validateTimeOfDay("bedtime", p.Sleep.Bedtime)...)
			errs = append(errs, validateTimeOfDay("wake up time", p.Sleep.WakeUpTime)...)
			errs = append(errs, validateRepeatDays(p.Sleep.RepeatDays)...)
		}
	case models.AlarmTypeLocation:
		if p.Location == nil {
			errs = append(errs, "location alarm fields are missing")
		} else {
			errs = append(errs, validateCoordinates(p.Location.Target.Coordinates)...)
			if p.Location.RadiusMeters <= 0 {
				errs = append(errs, "radius must be greater than 0")
			}
			if !p.Location.RepeatType.Valid() {
				errs = append(errs, fmt.Sprintf("unknown repeat type %q", p.Location.RepeatType))
			}
		}
	}

	return errs
}

func validateTimeOfDay(field, value string) ValidationErrors {
	if _, _, err := clock.ParseTimeOfDay(value); err != nil {
		return ValidationErrors{fmt.Sprintf("%s must be HH:MM (got %q)", field, value)}
	}
	return nil
}

func validateRepeatDays(days []models.Weekday) ValidationErrors {
	var errs ValidationErrors
	for _, d := range days {
		if !d.Valid() {
			errs = append(errs, fmt.Sprintf("invalid repeat day %d", d))
		}
	}
	return errs
}

func validateCoordinates(c models.Coordinates) ValidationErrors {
	var errs ValidationErrors
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		errs = append(errs, "latitude must be a finite value between -90 and 90")
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, "longitude must be a finite value between -180 and 180")
	}
	return errs
}

// Build 纯构造：分配 ID 与时间戳，按判别类型装配实体。
// 调用方需先 Normalize + Validate。
func (b *Builder) Build(p *models.AlarmPayload, now time.Time) (*models.Alarm, error) {
	if errs := b.Validate(p); errs != nil {
		return nil, errs
	}

	alarm := &models.Alarm{
		ID:            uuid.New().String(),
		Type:          p.Type,
		Label:         strings.TrimSpace(p.Label),
		IsEnabled:     *p.IsEnabled,
		Sound:         *p.Sound,
		Volume:        *p.Volume,
		Vibrate:       *p.Vibrate,
		SnoozeEnabled: *p.SnoozeEnabled,
		SnoozeMinutes: *p.SnoozeMinutes,
		MaxSnoozes:    *p.MaxSnoozes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch p.Type {
	case models.AlarmTypeTime:
		spec := *p.Time
		alarm.Time = &spec
	case models.AlarmTypeSleep:
		spec := *p.Sleep
		alarm.Sleep = &spec
	case models.AlarmTypeLocation:
		spec := *p.Location
		alarm.Location = &spec
	}

	return alarm, nil
}

// Merge 把更新负载合并到既有闹钟的副本上（nil 字段保持不变），
// 返回合并后的新实体；调用方负责校验与类型一致性检查。
func (b *Builder) Merge(existing *models.Alarm, p *models.AlarmPayload, now time.Time) *models.Alarm {
	merged := existing.Clone()
	merged.UpdatedAt = now

	if strings.TrimSpace(p.Label) != "" {
		merged.Label = strings.TrimSpace(p.Label)
	}
	if p.IsEnabled != nil {
		merged.IsEnabled = *p.IsEnabled
	}
	if p.Sound != nil {
		merged.Sound = *p.Sound
	}
	if p.Volume != nil {
		merged.Volume = *p.Volume
	}
	if p.Vibrate != nil {
		merged.Vibrate = *p.Vibrate
	}
	if p.SnoozeEnabled != nil {
		merged.SnoozeEnabled = *p.SnoozeEnabled
	}
	if p.SnoozeMinutes != nil {
		merged.SnoozeMinutes = *p.SnoozeMinutes
	}
	if p.MaxSnoozes != nil {
		merged.MaxSnoozes = *p.MaxSnoozes
	}

	if p.Time != nil && merged.Time != nil {
		spec := *p.Time
		merged.Time = &spec
	}
	if p.Sleep != nil && merged.Sleep != nil {
		spec := *p.Sleep
		merged.Sleep = &spec
	}
	if p.Location != nil && merged.Location != nil {
		spec := *p.Location
		merged.Location = &spec
	}

	return merged
}

// PayloadOf 把既有闹钟还原为校验用负载（更新路径复用 Validate）
func PayloadOf(a *models.Alarm) *models.AlarmPayload {
	dup := a.Clone()
	return &models.AlarmPayload{
		Type:          dup.Type,
		Label:         dup.Label,
		IsEnabled:     &dup.IsEnabled,
		Sound:         &dup.Sound,
		Volume:        &dup.Volume,
		Vibrate:       &dup.Vibrate,
		SnoozeEnabled: &dup.SnoozeEnabled,
		SnoozeMinutes: &dup.SnoozeMinutes,
		MaxSnoozes:    &dup.MaxSnoozes,
		Time:          dup.Time,
		Sleep:         dup.Sleep,
		Location:      dup.Location,
	}
}

// RepeatDaysLabel 重复日的显示标签，如 "Every day"、"Weekdays"、"Mon, Wed, Fri"
func RepeatDaysLabel(days []models.Weekday) string {
	if len(days) == 0 {
		return "Once"
	}

	seen := make(map[models.Weekday]bool, len(days))
	uniq := make([]models.Weekday, 0, len(days))
	for _, d := range days {
		if d.Valid() && !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	if len(uniq) == 7 {
		return "Every day"
	}
	if len(uniq) == 5 && !seen[models.Sunday] && !seen[models.Saturday] {
		return "Weekdays"
	}
	if len(uniq) == 2 && seen[models.Sunday] && seen[models.Saturday] {
		return "Weekends"
	}

	names := make([]string, len(uniq))
	for i, d := range uniq {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}
