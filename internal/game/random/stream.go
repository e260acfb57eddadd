package random

import "math/rand/v2"

// Stream is a deterministic random source that carries its own position.
// A Stream is a plain value: every draw returns the advanced stream so the
// caller can persist it next to the state that consumed the draw.
type Stream struct {
	Seed  int64  `json:"seed"`
	Draws uint64 `json:"draws"`
}

// NewStream starts a stream at the first draw of the seed.
func NewStream(seed int64) Stream {
	return Stream{Seed: seed}
}

// Next returns a value in [0, n) and the advanced stream. n <= 1 always yields 0
// but still advances the stream so draw counts stay comparable across runs.
func (s Stream) Next(n int) (int, Stream) {
	next := Stream{Seed: s.Seed, Draws: s.Draws + 1}
	if n <= 1 {
		return 0, next
	}
	r := rand.New(rand.NewPCG(uint64(s.Seed), s.Draws))
	return r.IntN(n), next
}

// Pick selects one element of items, returning the zero value for an empty slice.
func Pick[T any](s Stream, items []T) (T, Stream) {
	var zero T
	if len(items) == 0 {
		return zero, s
	}
	i, next := s.Next(len(items))
	return items[i], next
}
