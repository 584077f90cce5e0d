package loader

// Strategy fixes the chunk size and the cache bound for one document.
type Strategy struct {
	ChunkSize       int
	MaxCachedChunks int
}

const (
	largeDocument  = 100 << 20
	mediumDocument = 50 << 20
)

// StrategyFor picks a strategy from the document size: bigger documents get
// bigger chunks and fewer cached ones, so the cache stays around 20-25 MB.
func StrategyFor(size int64) Strategy {
	switch {
	case size > largeDocument:
		return Strategy{ChunkSize: 2 << 20, MaxCachedChunks: 10}
	case size > mediumDocument:
		return Strategy{ChunkSize: 1 << 20, MaxCachedChunks: 20}
	default:
		return Strategy{ChunkSize: 512 << 10, MaxCachedChunks: 50}
	}
}

// MaxCacheBytes is the most memory the chunk cache can hold.
func (s Strategy) MaxCacheBytes() int64 {
	return int64(s.ChunkSize) * int64(s.MaxCachedChunks)
}
