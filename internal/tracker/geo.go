package tracker

import (
	"math"

	"waketime/internal/models"
)

// earthRadiusKM 地球平均半径（千米）
const earthRadiusKM = 6371.0

// HaversineMeters 计算两点间大圆距离（米）
func HaversineMeters(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	distanceKM := 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return distanceKM * 1000
}
