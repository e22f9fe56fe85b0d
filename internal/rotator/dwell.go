package rotator

import "time"

const (
	// MinDwell is the shortest time any headline stays on screen.
	MinDwell = 4000 * time.Millisecond
	// SettleTime is added to every computed dwell.
	SettleTime = 1500 * time.Millisecond
	// perTenWords is the reading time budget for ten words.
	perTenWords = 3000 * time.Millisecond
)

// Dwell returns how long a headline of the given word count stays visible:
// max(MinDwell, words/10 * 3s + SettleTime).
func Dwell(words int) time.Duration {
	if words < 0 {
		words = 0
	}
	d := time.Duration(words)*perTenWords/10 + SettleTime
	if d < MinDwell {
		return MinDwell
	}
	return d
}
