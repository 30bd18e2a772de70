package maf

// Zone classifies a heart rate against a MAF result.
type Zone string

const (
	ZoneBelow Zone = "below"
	ZoneMAF   Zone = "maf"
	ZoneAbove Zone = "above"
)

// maxAbovePercentage caps the display percentage for heart rates above the zone.
const maxAbovePercentage = 150

// Reading is a classified heart rate with a display-only progress percentage.
type Reading struct {
	Zone       Zone    `json:"zone"`
	Percentage float64 `json:"percentage"`
}

// HeartRateZone classifies hr. Both zone bounds count as inside the zone.
func HeartRateZone(hr float64, r Result) Reading {
	minHR := float64(r.MinHeartRate)
	maxHR := float64(r.MaxHeartRate)

	switch {
	case hr < minHR:
		return Reading{Zone: ZoneBelow, Percentage: ratio(hr, minHR) * 100}
	case hr <= maxHR:
		return Reading{Zone: ZoneMAF, Percentage: ratio(hr-minHR, maxHR-minHR) * 100}
	default:
		pct := ratio(hr-maxHR, maxHR)*100 + 100
		if pct > maxAbovePercentage {
			pct = maxAbovePercentage
		}
		return Reading{Zone: ZoneAbove, Percentage: pct}
	}
}

// InZone reports whether hr lies within [MinHeartRate, MaxHeartRate].
func InZone(hr float64, r Result) bool {
	return hr >= float64(r.MinHeartRate) && hr <= float64(r.MaxHeartRate)
}

// markerMargin is how far beyond each zone bound the workout gauge extends.
const markerMargin = 20

// MarkerPosition places hr on a 0-100 gauge spanning [min-20, max+20].
func MarkerPosition(hr float64, r Result) float64 {
	lo := float64(r.MinHeartRate - markerMargin)
	hi := float64(r.MaxHeartRate + markerMargin)
	pos := ratio(hr-lo, hi-lo) * 100
	switch {
	case pos < 0:
		return 0
	case pos > 100:
		return 100
	}
	return pos
}

// ratio divides a by b and returns 0 for a zero divisor so classification stays total.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
