package prize

import "math"

const (
	MinTurns = 3
	MaxTurns = 5
)

// SectorSize: угол одного сектора в градусах
func SectorSize() float64 {
	return 360 / float64(len(defaultTable))
}

// Rotation возвращает угол поворота колеса по часовой стрелке, после которого
// указатель сверху стоит ровно в центре сектора index.
// Сектор i занимает [i*size, (i+1)*size) от указателя по часовой стрелке.
func Rotation(index, turns int) float64 {
	size := SectorSize()
	centre := (float64(index) + 0.5) * size
	return float64(turns)*360 + (360 - centre)
}

// SectorAt возвращает индекс сектора под указателем после поворота на rotation градусов
func SectorAt(rotation float64) int {
	r := math.Mod(rotation, 360)
	if r < 0 {
		r += 360
	}
	angle := math.Mod(360-r, 360)
	idx := int(math.Floor(angle / SectorSize()))
	if idx >= len(defaultTable) {
		idx = len(defaultTable) - 1
	}
	return idx
}
