// Package loader pages a document through a bounded chunk cache so that a
// viewer can read arbitrary ranges of a large file without loading all of it.
package loader

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dl/pdfload/internal/input"
)

// chunkSource is the part of input.Reader the loader depends on.
type chunkSource interface {
	Probe(path string) (input.FileInfo, error)
	ReadChunk(path string, chunkSize int, offset int64) ([]byte, error)
}

const defaultPrefetchWorkers = 4

// Options configures a Loader. The zero value is usable.
type Options struct {
	// Reader performs probes and chunk reads. Nil means an input.FileReader.
	Reader chunkSource
	Logger *log.Logger
	// Strategy overrides the size-based choice when ChunkSize is non-zero.
	Strategy Strategy
	// PrefetchWorkers bounds concurrent reads in Prefetch. Zero means 4.
	PrefetchWorkers int
}

// Loader serves byte ranges of one document from a cache of fixed-size chunks.
// It is safe for concurrent use. Chunk slices it returns are shared with the
// cache and must not be modified.
type Loader struct {
	path     string
	src      chunkSource
	logger   *log.Logger
	fixed    bool
	override Strategy
	workers  int

	group singleflight.Group

	mu         sync.Mutex
	info       input.FileInfo
	strategy   Strategy
	cache      *chunkCache
	generation uint64
}

// snapshot is the loader state a single operation works against, so a
// concurrent Refresh cannot mix chunk sizes within one read.
type snapshot struct {
	size       int64
	strategy   Strategy
	generation uint64
}

// Open probes path and prepares a loader for it. No content is read.
func Open(path string, opts Options) (*Loader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	src := opts.Reader
	if src == nil {
		src = input.NewFileReader(input.Options{Logger: logger})
	}
	workers := opts.PrefetchWorkers
	if workers <= 0 {
		workers = defaultPrefetchWorkers
	}

	l := &Loader{
		path:     path,
		src:      src,
		logger:   logger,
		fixed:    opts.Strategy.ChunkSize > 0,
		override: opts.Strategy,
		workers:  workers,
	}
	if _, err := l.Refresh(); err != nil {
		return nil, err
	}

	l.logger.Info("document opened",
		"path", path,
		"size", l.info.SizeLabel,
		"chunk", humanize.IBytes(uint64(l.strategy.ChunkSize)),
		"max_cached", l.strategy.MaxCachedChunks)
	return l, nil
}

// Refresh re-probes the document, re-selects the strategy and drops every
// cached chunk. Call it after the file changed on disk.
func (l *Loader) Refresh() (input.FileInfo, error) {
	info, err := l.src.Probe(l.path)
	if err != nil {
		return input.FileInfo{}, err
	}

	strategy := StrategyFor(info.Size)
	if l.fixed {
		strategy = l.override
		if strategy.MaxCachedChunks <= 0 {
			strategy.MaxCachedChunks = StrategyFor(info.Size).MaxCachedChunks
		}
	}

	l.mu.Lock()
	l.info = info
	l.strategy = strategy
	l.cache = newChunkCache(strategy.MaxCachedChunks)
	l.generation++
	l.mu.Unlock()
	return info, nil
}

// Reset drops every cached chunk. Loads already in flight finish but are not cached.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.cache.reset()
	l.generation++
	l.mu.Unlock()
	l.logger.Debug("chunk cache cleared", "path", l.path)
}

func (l *Loader) Path() string { return l.path }

// Size is the document size from the latest probe.
func (l *Loader) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info.Size
}

// Info is the latest probe result.
func (l *Loader) Info() input.FileInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}

func (l *Loader) Strategy() Strategy {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.strategy
}

// Cached reports how many chunks are currently cached.
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.len()
}

func (l *Loader) snapshot() snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot{size: l.info.Size, strategy: l.strategy, generation: l.generation}
}

// Chunk returns chunk index of the document. Indices at or past EOF yield an
// empty chunk without touching the file. Concurrent requests for the same
// chunk share one read.
func (l *Loader) Chunk(ctx context.Context, index int64) ([]byte, error) {
	return l.load(ctx, l.snapshot(), index)
}

func (l *Loader) load(ctx context.Context, s snapshot, index int64) ([]byte, error) {
	if index < 0 {
		return nil, &input.InvalidArgumentError{Name: "chunk index", Value: index}
	}

	l.mu.Lock()
	if l.generation == s.generation {
		if data, ok := l.cache.get(index); ok {
			l.mu.Unlock()
			return data, nil
		}
	}
	l.mu.Unlock()

	offset := index * int64(s.strategy.ChunkSize)
	if offset >= s.size {
		return []byte{}, nil
	}

	key := strconv.FormatUint(s.generation, 10) + ":" + strconv.FormatInt(index, 10)
	ch := l.group.DoChan(key, func() (any, error) {
		data, err := l.src.ReadChunk(l.path, s.strategy.ChunkSize, offset)
		if err != nil {
			l.logger.Error("chunk load failed", "path", l.path, "index", index, "err", err)
			return nil, err
		}

		l.mu.Lock()
		if l.generation == s.generation {
			for _, evicted := range l.cache.put(index, data) {
				l.logger.Debug("evicted chunk", "path", l.path, "index", evicted)
			}
		}
		l.mu.Unlock()
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadAt implements io.ReaderAt over the document.
func (l *Loader) ReadAt(p []byte, off int64) (int, error) {
	return l.readAt(context.Background(), l.snapshot(), p, off)
}

func (l *Loader) readAt(ctx context.Context, s snapshot, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &input.InvalidArgumentError{Name: "offset", Value: off}
	}
	if off >= s.size {
		return 0, io.EOF
	}

	chunkSize := int64(s.strategy.ChunkSize)
	n := 0
	for n < len(p) {
		pos := off + int64(n)
		if pos >= s.size {
			break
		}
		index := pos / chunkSize
		chunk, err := l.load(ctx, s, index)
		if err != nil {
			return n, err
		}
		within := pos - index*chunkSize
		if within >= int64(len(chunk)) {
			// The file shrank since the probe.
			break
		}
		n += copy(p[n:], chunk[within:])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Range returns up to length bytes starting at start, shorter at EOF.
// The returned slice is owned by the caller.
func (l *Loader) Range(ctx context.Context, start, length int64) ([]byte, error) {
	if start < 0 {
		return nil, &input.InvalidArgumentError{Name: "start", Value: start}
	}
	if length < 0 {
		return nil, &input.InvalidArgumentError{Name: "length", Value: length}
	}

	s := l.snapshot()
	if length == 0 || start >= s.size {
		return []byte{}, nil
	}
	end := min(start+length, s.size)

	buf := make([]byte, end-start)
	n, err := l.readAt(ctx, s, buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// Section returns a reader over the whole document as of the latest probe.
func (l *Loader) Section() *io.SectionReader {
	return io.NewSectionReader(l, 0, l.Size())
}

// Prefetch loads count chunks starting at first, with bounded concurrency.
// It stops at EOF and returns the first load error.
func (l *Loader) Prefetch(ctx context.Context, first, count int64) error {
	if first < 0 {
		return &input.InvalidArgumentError{Name: "chunk index", Value: first}
	}
	s := l.snapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for index := first; index < first+count; index++ {
		if index*int64(s.strategy.ChunkSize) >= s.size {
			break
		}
		g.Go(func() error {
			_, err := l.load(gctx, s, index)
			return err
		})
	}
	return g.Wait()
}

var _ io.ReaderAt = (*Loader)(nil)
