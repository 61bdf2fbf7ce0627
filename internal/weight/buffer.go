// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package weight

// SampleBuffer is a fixed-capacity store of gram deltas. Storage is
// allocated once and reused; only the first Len() elements are meaningful.
type SampleBuffer struct {
	samples []float64
	n       int
}

// NewSampleBuffer allocates a buffer holding up to capacity samples.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &SampleBuffer{samples: make([]float64, capacity)}
}

// Append stores v and reports whether there was room for it.
func (b *SampleBuffer) Append(v float64) bool {
	if b.n >= len(b.samples) {
		return false
	}
	b.samples[b.n] = v
	b.n++
	return true
}

func (b *SampleBuffer) Len() int { return b.n }

func (b *SampleBuffer) Cap() int { return len(b.samples) }

func (b *SampleBuffer) Full() bool { return b.n == len(b.samples) }

// Samples returns the collected samples. The slice aliases the buffer and
// is only valid until the next Append or Reset.
func (b *SampleBuffer) Samples() []float64 {
	return b.samples[:b.n]
}

// Reset discards the collected samples.
func (b *SampleBuffer) Reset() {
	b.n = 0
}
