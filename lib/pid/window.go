// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pid

// sample is one (elapsed, error) observation.
type sample struct {
	elapsed float64
	error   float64
}

// window is a fixed-capacity ring of the most recent samples. Pushing
// into a full window overwrites the oldest sample.
type window struct {
	samples []sample
	start   int
	count   int
}

func newWindow(capacity int) *window {
	return &window{samples: make([]sample, capacity)}
}

func (w *window) push(s sample) {
	capacity := len(w.samples)
	if w.count < capacity {
		w.samples[(w.start+w.count)%capacity] = s
		w.count++
		return
	}
	w.samples[w.start] = s
	w.start = (w.start + 1) % capacity
}

// at returns the i-th oldest sample.
func (w *window) at(i int) sample {
	return w.samples[(w.start+i)%len(w.samples)]
}

// slopeSum returns the sum over consecutive pairs of
// (error_next - error_prev) / elapsed_next. Pairs whose elapsed is not
// positive contribute nothing, and fewer than two samples sum to 0.
func (w *window) slopeSum() float64 {
	var sum float64
	for i := 1; i < w.count; i++ {
		previous, next := w.at(i-1), w.at(i)
		if next.elapsed <= 0 {
			continue
		}
		sum += (next.error - previous.error) / next.elapsed
	}
	return sum
}
