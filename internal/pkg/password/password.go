package password

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultCost = 12

	// bcrypt ignores or rejects input past this many bytes.
	maxInputBytes = 72
)

// Hasher hashes and verifies passwords with bcrypt. At most `workers` hash
// operations run at once; the rest wait on the pool or give up when their
// context ends.
type Hasher struct {
	cost int
	pool *semaphore.Weighted
}

func NewHasher(cost int, workers int) *Hasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Hasher{cost: cost, pool: semaphore.NewWeighted(int64(workers))}
}

func (h *Hasher) Cost() int {
	return h.cost
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.pool.Release(1)
	hashed, err := bcrypt.GenerateFromPassword(prepare(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches digest. A malformed digest is a
// mismatch, not an error; err is only set when ctx ends before a worker frees up.
func (h *Hasher) Verify(ctx context.Context, plain, digest string) (bool, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.pool.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(digest), prepare(plain)) == nil, nil
}

// prepare maps plain to bcrypt input. Passwords longer than bcrypt accepts
// are reduced to the base64 of their SHA-256 so every byte still counts;
// shorter ones go in unchanged.
func prepare(plain string) []byte {
	if len(plain) <= maxInputBytes {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
