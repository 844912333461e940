// README: Delta & rate computer: byte growth between reads and a sliding-window activity rate.
package coverage

// ComputeDelta returns the clamped growth between prev and cur and the
// baseline to carry into the next tick. A missing current reading yields 0
// and keeps the previous baseline; a missing previous reading yields 0.
func ComputeDelta(prev, cur *int64) (delta int64, next *int64) {
	if cur == nil {
		return 0, prev
	}
	size := *cur
	if prev == nil {
		return 0, &size
	}
	if d := size - *prev; d > 0 {
		return d, &size
	}
	return 0, &size
}

// RateWindow holds the most recent per-tick deltas used to smooth activity.
type RateWindow struct {
	deltas   []int64
	capacity int
}

func NewRateWindow(capacity int) RateWindow {
	if capacity < 1 {
		capacity = 1
	}
	return RateWindow{deltas: make([]int64, 0, capacity), capacity: capacity}
}

// Push appends delta, dropping the oldest entry once the window is full.
func (w *RateWindow) Push(delta int64) {
	if len(w.deltas) == w.capacity {
		copy(w.deltas, w.deltas[1:])
		w.deltas = w.deltas[:len(w.deltas)-1]
	}
	w.deltas = append(w.deltas, delta)
}

// Len returns the number of ticks currently in the window.
func (w RateWindow) Len() int {
	return len(w.deltas)
}

// Sum returns the total bytes observed across the window.
func (w RateWindow) Sum() int64 {
	var total int64
	for _, d := range w.deltas {
		total += d
	}
	return total
}

// PacketsPerSecond estimates the packet rate over the window given an
// average packet size and the tick interval in seconds.
func (w RateWindow) PacketsPerSecond(packetSizeBytes int, intervalSec float64) float64 {
	if packetSizeBytes <= 0 || intervalSec <= 0 || len(w.deltas) == 0 {
		return 0
	}
	packets := float64(w.Sum()) / float64(packetSizeBytes)
	return packets / (float64(len(w.deltas)) * intervalSec)
}

func (w RateWindow) clone() RateWindow {
	cp := make([]int64, len(w.deltas), w.capacity)
	copy(cp, w.deltas)
	return RateWindow{deltas: cp, capacity: w.capacity}
}
