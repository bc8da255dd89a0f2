// Package bufpool is a tiered sync.Pool of byte slices shared by every
// dispatch worker's EchoHandler, so repeated small writes (PONG, OK,
// DENIED, VALUE ...) don't each allocate and then wait on the GC.
//
// Get selects a tier by the requested size: small, medium, or large.
// Anything larger than the large tier is allocated directly and never
// pooled, so one oversized PUT can't pin a permanently large buffer in
// the pool.
package bufpool

import "sync"

// Default tier sizes, matching internal/config's BufferConfig defaults.
const (
	DefaultSmallSize  = 4 << 10
	DefaultMediumSize = 64 << 10
	DefaultLargeSize  = 1 << 20
)

// Pool is a set of three sync.Pool tiers, one per size class.
type Pool struct {
	tiers [3]sync.Pool
	sizes [3]int
}

// Config sizes a Pool's three tiers.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the built-in tier sizes.
func DefaultConfig() Config {
	return Config{SmallSize: DefaultSmallSize, MediumSize: DefaultMediumSize, LargeSize: DefaultLargeSize}
}

// NewPool builds a Pool from cfg. A nil cfg, or any non-positive field,
// falls back to DefaultConfig's value for that tier.
func NewPool(cfg *Config) *Pool {
	resolved := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			resolved.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			resolved.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			resolved.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{sizes: [3]int{resolved.SmallSize, resolved.MediumSize, resolved.LargeSize}}
	for i, size := range p.sizes {
		size := size
		p.tiers[i].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// tierFor returns the index of the smallest tier that fits size, or -1 if
// size exceeds every tier.
func (p *Pool) tierFor(size int) int {
	for i, tierSize := range p.sizes {
		if size <= tierSize {
			return i
		}
	}
	return -1
}

// Get returns a slice of exactly size bytes, backed by a pooled buffer
// from the smallest tier that fits. The caller must Put it back when done;
// an un-returned buffer is simply garbage collected, not leaked.
func (p *Pool) Get(size int) []byte {
	tier := p.tierFor(size)
	if tier < 0 {
		return make([]byte, size)
	}
	bufPtr := p.tiers[tier].Get().(*[]byte)
	return (*bufPtr)[:size]
}

// Put returns buf to the tier matching its capacity. A buffer whose
// capacity doesn't exactly match a tier size (including anything from the
// oversized path in Get) is dropped and left to the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	capacity := cap(buf)
	for i, tierSize := range p.sizes {
		if capacity == tierSize {
			full := buf[:capacity]
			p.tiers[i].Put(&full)
			return
		}
	}
}

// defaultPool is the process-wide pool used by Default, built with the
// package's default tier sizes. cmd/vaultd's server builds and passes its
// own config-sized Pool to every EchoHandler; Default only backstops a
// handler built with a nil Pool (as in tests and examples).
var defaultPool = NewPool(nil)

// Default returns the shared default-sized Pool.
func Default() *Pool {
	return defaultPool
}

// Get returns a buffer from the default pool. Convenience wrapper for
// callers that don't need a config-sized Pool of their own.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put returns buf to the default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// GetUint32 is Get for callers carrying a wire-format uint32 length.
func GetUint32(size uint32) []byte { return defaultPool.Get(int(size)) }
