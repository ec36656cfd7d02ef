package dedupe

// Option configures an in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of keys kept in memory. maxSize > 0
// enables bounded mode, evicting the oldest key; maxSize <= 0 is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
