package clock

import (
	"testing"
	"time"

	"waketime/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 是星期一
var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func TestParseTimeOfDay_Valid(t *testing.T) {
	hour, minute, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 5, minute)

	hour, minute, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, hour)
	assert.Equal(t, 59, minute)

	hour, minute, err = ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, hour)
	assert.Equal(t, 0, minute)
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	// 小时越界
	_, _, err := ParseTimeOfDay("24:00")
	assert.Error(t, err)

	// 分钟越界
	_, _, err = ParseTimeOfDay("12:60")
	assert.Error(t, err)

	// 非两位数字
	_, _, err = ParseTimeOfDay("7:05")
	assert.Error(t, err)

	_, _, err = ParseTimeOfDay("07:5")
	assert.Error(t, err)

	_, _, err = ParseTimeOfDay("ab:cd")
	assert.Error(t, err)

	_, _, err = ParseTimeOfDay("")
	assert.Error(t, err)
}

func TestNextFireTime_OneShot_TodayNotPassed(t *testing.T) {
	// now = 周一 08:00，目标 09:30 → 今天
	fire, err := NextFireTime("09:30", nil, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), fire)
}

func TestNextFireTime_OneShot_TodayPassed(t *testing.T) {
	// now = 周一 08:00，目标 06:30 已过 → 明天
	fire, err := NextFireTime("06:30", nil, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), fire)
}

func TestNextFireTime_OneShot_ExactNowGoesTomorrow(t *testing.T) {
	// 候选时间等于 now 不算（必须严格晚于 now）
	fire, err := NextFireTime("08:00", nil, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), fire)
}

func TestNextFireTime_RepeatSameDayPassed(t *testing.T) {
	// 周一 08:00，每周一 07:00 → 下周一
	fire, err := NextFireTime("07:00", []models.Weekday{models.Monday}, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC), fire)
	assert.Equal(t, time.Monday, fire.Weekday())
}

func TestNextFireTime_RepeatSameDayNotPassed(t *testing.T) {
	// 周一 08:00，每周一 09:00 → 今天
	fire, err := NextFireTime("09:00", []models.Weekday{models.Monday}, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), fire)
}

func TestNextFireTime_RepeatPicksEarliestDay(t *testing.T) {
	// 周一 08:00，周三 + 周五 07:00 → 本周三
	fire, err := NextFireTime("07:00", []models.Weekday{models.Friday, models.Wednesday}, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC), fire)
	assert.Equal(t, time.Wednesday, fire.Weekday())
}

func TestNextFireTime_StrictlyAfterNow(t *testing.T) {
	// 任意组合的结果都严格晚于 now
	cases := []struct {
		timeOfDay string
		days      []models.Weekday
	}{
		{"00:00", nil},
		{"08:00", nil},
		{"23:59", nil},
		{"08:00", []models.Weekday{models.Monday}},
		{"07:59", []models.Weekday{models.Sunday, models.Saturday}},
		{"12:00", []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday, models.Saturday, models.Sunday}},
	}
	for _, c := range cases {
		fire, err := NextFireTime(c.timeOfDay, c.days, monday)
		require.NoError(t, err)
		assert.True(t, fire.After(monday), "expected %v after %v for %s %v", fire, monday, c.timeOfDay, c.days)
	}
}

func TestNextFireTime_InvalidInput(t *testing.T) {
	_, err := NextFireTime("25:00", nil, monday)
	assert.Error(t, err)

	_, err = NextFireTime("08:00", []models.Weekday{models.Weekday(7)}, monday)
	assert.Error(t, err)
}

func TestNextWakeFireTime_DayShift(t *testing.T) {
	// bed 23:00 / wake 07:00，每周一 → 起床在周二 07:00
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC) // 周一 06:00
	fire, err := NextWakeFireTime("23:00", "07:00", []models.Weekday{models.Monday}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), fire)
	assert.Equal(t, time.Tuesday, fire.Weekday())
}

func TestNextWakeFireTime_NoShiftWhenSameDay(t *testing.T) {
	// bed 06:00 / wake 22:00 不跨午夜 → 起床仍在周一
	now := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	fire, err := NextWakeFireTime("06:00", "22:00", []models.Weekday{models.Monday}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC), fire)
}

func TestNextWakeFireTime_OneShotCrossing(t *testing.T) {
	// 一次性跨午夜：起床落在就寝的次日
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	fire, err := NextWakeFireTime("23:00", "07:00", nil, now)
	require.NoError(t, err)
	// 就寝周一 23:00 → 起床周二 07:00
	assert.Equal(t, time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), fire)
}

func TestNextWakeFireTime_PerDayShiftIndependent(t *testing.T) {
	// 周一 + 周四重复，bed 23:00 / wake 07:00，now = 周一 06:00
	// 起床候选是周二和周五，最早为周二
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	fire, err := NextWakeFireTime("23:00", "07:00", []models.Weekday{models.Monday, models.Thursday}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, fire.Weekday())
}

func TestWakeCrossesMidnight(t *testing.T) {
	crosses, err := WakeCrossesMidnight("23:00", "07:00")
	require.NoError(t, err)
	assert.True(t, crosses)

	crosses, err = WakeCrossesMidnight("06:00", "22:00")
	require.NoError(t, err)
	assert.False(t, crosses)

	// 相等不算跨午夜
	crosses, err = WakeCrossesMidnight("07:00", "07:00")
	require.NoError(t, err)
	assert.False(t, crosses)
}

func TestSleepDuration(t *testing.T) {
	d, err := SleepDuration("23:00", "07:00")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, d)

	d, err = SleepDuration("22:30", "06:15")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+45*time.Minute, d)

	d, err = SleepDuration("01:00", "09:00")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, d)
}
