package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	b := make([]byte, n)
	r.Fill(b)
	return b
}

// Fill fills dst with pseudo-random bytes.
// Locks only once per call (preferred over calling Intn in a loop).
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Text returns n bytes of lowercase words separated by single spaces.
func (r *RNG) Text(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, n)
	word := 0
	for i := range b {
		if word > 2 && r.rand.Intn(6) == 0 {
			b[i] = ' '
			word = 0
			continue
		}
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
		word++
	}
	return b
}

// Names returns n distinct file names of the form prefix + number.
// The result fits the 11-byte directory name limit while
// len(prefix) + digits(n-1) <= 11.
func (r *RNG) Names(n int, prefix string) []string {
	r.mu.Lock()
	perm := r.rand.Perm(n)
	r.mu.Unlock()

	names := make([]string, n)
	for i, p := range perm {
		names[i] = fmt.Sprintf("%s%d", prefix, p)
	}
	return names
}
