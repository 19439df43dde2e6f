package rollback

// Source is a splitmix64-based math/rand.Source whose entire state is a
// single uint64, so it can be captured and restored exactly by a snapshot
// (§4.I "RNG state"). math/rand's own top-level generator and its default
// Source expose no portable way to read back internal state, which is why
// every `ams.random*` call in the sandbox is routed through a Source built
// here rather than the package-level rand functions (§8.1 determinism
// invariant: "no entropy reads except seeded ams.random*").
type Source struct {
	state uint64
}

// NewSource seeds a Source deterministically from seed.
func NewSource(seed int64) *Source {
	s := &Source{state: uint64(seed)}
	if s.state == 0 {
		s.state = 0x9e3779b97f4a7c15 // avoid the degenerate all-zero orbit
	}
	return s
}

// Seed reseeds the source, satisfying rand.Source.
func (s *Source) Seed(seed int64) {
	s.state = uint64(seed)
	if s.state == 0 {
		s.state = 0x9e3779b97f4a7c15
	}
}

// Int63 returns the next pseudo-random value in [0, 1<<63), satisfying
// rand.Source.
func (s *Source) Int63() int64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z = z ^ (z >> 31)
	return int64(z >> 1) // clear the sign bit per rand.Source's contract
}

// State returns the raw generator state for snapshotting.
func (s *Source) State() uint64 { return s.state }

// SetState restores a previously captured state.
func (s *Source) SetState(state uint64) { s.state = state }
