package sampler

import "math/rand/v2"

// NewStream returns the generator for a run seeded with seed. It is the
// sub-stream of worker 0.
func NewStream(seed uint64) *rand.Rand {
	return SubStream(seed, 0)
}

// SubStream returns the generator owned by one worker of a parallel run.
//
// Derivation: s = seed XOR worker, and the PCG source is seeded with
// (s, splitmix64(s)). Each worker therefore starts from a distinct PCG state;
// the second word decorrelates neighbouring seeds, which differ in few bits.
func SubStream(seed uint64, worker int) *rand.Rand {
	s := seed ^ uint64(worker)
	return rand.New(rand.NewPCG(s, splitmix64(s)))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
