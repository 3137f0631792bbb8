package triedb

const (
	// DefaultStoreSize is the mapped region size when none is configured.
	DefaultStoreSize = 256 * 1024 * 1024 // 256MB

	// DefaultValueCacheEntries sizes the snapshot read cache.
	DefaultValueCacheEntries = 4096
)

// Options configures store behavior.
type Options struct {
	storeSize int64
	cacheSize uint32
	logger    Logger
	inMemory  bool
}

func defaultOptions() Options {
	return Options{
		storeSize: DefaultStoreSize,
		cacheSize: DefaultValueCacheEntries,
		logger:    DiscardLogger{},
	}
}

// Option configures the store using the functional options pattern.
type Option func(*Options)

// WithStoreSize sets the total mapped size in bytes. Capacity is
// size / PageSize pages and never grows after open.
func WithStoreSize(size int64) Option {
	return func(opts *Options) {
		opts.storeSize = size
	}
}

// WithValueCacheEntries sets the number of entries in the snapshot read
// cache. Zero disables the cache.
func WithValueCacheEntries(n uint32) Option {
	return func(opts *Options) {
		opts.cacheSize = n
	}
}

// WithLogger sets the logger used for store lifecycle events.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.logger = l
	}
}

// WithInMemory backs the store with an anonymous mapping instead of a file.
// The path passed to Open is ignored and nothing survives Close.
func WithInMemory() Option {
	return func(opts *Options) {
		opts.inMemory = true
	}
}
