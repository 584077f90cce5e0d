package cli

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dl/pdfload/internal/input"
	"github.com/dl/pdfload/internal/loader"
	"github.com/dl/pdfload/internal/output"
	"github.com/dl/pdfload/internal/picker"
	"github.com/dl/pdfload/internal/scheduler"
	"github.com/dl/pdfload/internal/watch"
)

// Exit codes.
const (
	ExitOK    = 0 // success
	ExitNone  = 1 // nothing found or selection cancelled
	ExitError = 2 // at least one failure
)

const defaultDebounce = 100 * time.Millisecond

// App runs pdfload commands against one configuration.
type App struct {
	cfg    Config
	logger *log.Logger
	out    *output.Writer
	reader *input.FileReader
	filter picker.Filter
	// pickers yields the documents a command works on, one per picker.
	pickers []picker.Picker
}

// NewApp validates cfg and wires the reader, logger and output writer.
// Log lines go to logSink; results go to out.
func NewApp(cfg Config, out *output.Writer, logSink io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := log.WarnLevel
	if cfg.LogLevel != "" {
		level, _ = log.ParseLevel(cfg.LogLevel)
	}
	logger := log.NewWithOptions(logSink, log.Options{
		Level:  level,
		Prefix: "pdfload",
	})

	var estimator input.MemoryEstimator
	switch {
	case cfg.AvailableMemory > 0:
		estimator = input.FixedEstimator(cfg.AvailableMemory)
	case cfg.SystemMemory:
		estimator = input.NewSystemEstimator(input.DefaultAvailableMemory)
	}

	filter := picker.PDFFilter
	if cfg.AnyFile {
		filter = picker.Filter{}
	}

	pickers := make([]picker.Picker, len(cfg.Paths))
	for i, p := range cfg.Paths {
		pickers[i] = picker.Static{Path: p, Filter: filter}
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		reader:  input.NewFileReader(input.Options{Logger: logger, Estimator: estimator}),
		filter:  filter,
		pickers: pickers,
	}, nil
}

func (a *App) formatter(checksum bool) output.Formatter {
	if a.cfg.JSONOutput {
		return output.NewJSONFormatter()
	}
	useColor := false
	switch a.cfg.Color {
	case ColorAlways:
		useColor = true
	case ColorNever:
		useColor = false
	case ColorAuto:
		useColor = output.StdoutIsTerminal()
	}
	styles := output.NoStyles()
	if useColor {
		styles = output.NewStyles()
	}
	return output.NewTextFormatter(styles, checksum)
}

// pick asks every picker for its document. ok is false when a selection was
// cancelled or rejected; code then holds the exit code.
func (a *App) pick() (paths []string, code int, ok bool) {
	if len(a.pickers) == 0 {
		return nil, ExitNone, false
	}
	for _, p := range a.pickers {
		path, picked, err := p.Pick()
		if err != nil {
			a.logger.Error("invalid selection", "err", err)
			return nil, ExitError, false
		}
		if !picked {
			return nil, ExitNone, false
		}
		paths = append(paths, path)
	}
	return paths, ExitOK, true
}

func (a *App) pickOne() (string, int, bool) {
	paths, code, ok := a.pick()
	if !ok {
		return "", code, false
	}
	if len(paths) > 1 {
		a.logger.Error("expected a single document", "count", len(paths))
		return "", ExitError, false
	}
	return paths[0], ExitOK, true
}

func (a *App) logFailure(r output.Result) {
	a.logger.Error("read failed",
		"path", r.Path,
		"op", r.Op,
		"kind", input.KindOf(r.Err),
		"err", r.Err)
}

// runJobs executes one job of kind op per path and writes results in order.
func (a *App) runJobs(op output.Op, paths []string, checksum bool) int {
	jobs := make(chan scheduler.Job)
	go func() {
		defer close(jobs)
		for _, p := range paths {
			jobs <- scheduler.NewJob(op, p)
		}
	}()

	sched := scheduler.New(a.cfg.Workers, a.reader)
	var failed atomic.Bool
	ow := output.NewOrderedWriter(a.out, a.formatter(checksum))
	err := ow.WriteOrdered(sched.Run(jobs), func(r output.Result) {
		if !r.OK() {
			failed.Store(true)
			a.logFailure(r)
		}
	})
	if err != nil {
		a.logger.Error("write failed", "err", err)
		return ExitError
	}
	if failed.Load() {
		return ExitError
	}
	return ExitOK
}

// Info probes each path.
func (a *App) Info() int {
	paths, code, ok := a.pick()
	if !ok {
		return code
	}
	return a.runJobs(output.OpProbe, paths, false)
}

// Read reads each path whole. With Raw set, the bytes of a single document
// are written to the output instead of a summary.
func (a *App) Read(ctx context.Context) int {
	if !a.cfg.Raw {
		paths, code, ok := a.pick()
		if !ok {
			return code
		}
		return a.runJobs(output.OpWhole, paths, true)
	}

	path, code, ok := a.pickOne()
	if !ok {
		return code
	}
	return a.submitRaw(ctx, scheduler.NewJob(output.OpWhole, path))
}

// Chunk reads one chunk of a single document.
func (a *App) Chunk(ctx context.Context) int {
	path, code, ok := a.pickOne()
	if !ok {
		return code
	}
	job := scheduler.NewJob(output.OpChunk, path)
	job.ChunkSize = a.cfg.ChunkSize
	job.Offset = a.cfg.Offset

	if a.cfg.Raw {
		return a.submitRaw(ctx, job)
	}
	return a.submitFormatted(ctx, job)
}

func (a *App) submitFormatted(ctx context.Context, job scheduler.Job) int {
	r, err := scheduler.New(1, a.reader).Submit(ctx, job)
	if err != nil {
		a.logger.Error("cancelled", "path", job.Path, "err", err)
		return ExitError
	}
	if err := a.out.Write(a.formatter(false).Format(nil, r)); err != nil {
		a.logger.Error("write failed", "err", err)
		return ExitError
	}
	if !r.OK() {
		a.logFailure(r)
		return ExitError
	}
	return ExitOK
}

func (a *App) submitRaw(ctx context.Context, job scheduler.Job) int {
	r, err := scheduler.New(1, a.reader).Submit(ctx, job)
	if err != nil {
		a.logger.Error("cancelled", "path", job.Path, "err", err)
		return ExitError
	}
	if !r.OK() {
		a.logFailure(r)
		return ExitError
	}
	if err := a.out.Write(r.Data); err != nil {
		a.logger.Error("write failed", "err", err)
		return ExitError
	}
	return ExitOK
}

// Cat streams a whole document to the output chunk by chunk.
func (a *App) Cat(ctx context.Context) int {
	path, code, ok := a.pickOne()
	if !ok {
		return code
	}

	var written int64
	for c := range input.Stream(ctx, a.reader, path, a.cfg.ChunkSize) {
		if c.Err != nil {
			a.logger.Error("read failed",
				"path", path,
				"offset", c.Offset,
				"kind", input.KindOf(c.Err),
				"err", c.Err)
			return ExitError
		}
		if err := a.out.Write(c.Data); err != nil {
			a.logger.Error("write failed", "err", err)
			return ExitError
		}
		written += int64(len(c.Data))
	}
	if err := ctx.Err(); err != nil {
		a.logger.Warn("interrupted", "path", path, "written", written)
		return ExitError
	}
	a.logger.Debug("stream complete", "path", path, "bytes", written)
	return ExitOK
}

// Range reads Length bytes at Start through the chunk loader. A zero
// length reads to the end of the document.
func (a *App) Range(ctx context.Context) int {
	path, code, ok := a.pickOne()
	if !ok {
		return code
	}

	l, err := loader.Open(path, loader.Options{
		Reader:          a.reader,
		Logger:          a.logger,
		PrefetchWorkers: a.cfg.Workers,
	})
	if err != nil {
		a.logFailure(output.Result{Op: output.OpProbe, Path: path, Err: err})
		return ExitError
	}

	length := a.cfg.Length
	if length == 0 {
		length = max(l.Size()-a.cfg.Start, 0)
	}
	if a.cfg.Prefetch > 0 {
		first := a.cfg.Start / int64(l.Strategy().ChunkSize)
		if err := l.Prefetch(ctx, first, a.cfg.Prefetch); err != nil {
			a.logger.Warn("prefetch failed", "path", path, "err", err)
		}
	}

	data, err := l.Range(ctx, a.cfg.Start, length)
	r := output.Result{Op: output.OpChunk, Path: path, Info: l.Info(), Offset: a.cfg.Start, Data: data, Err: err}
	if err != nil {
		a.logFailure(r)
		if a.cfg.Raw {
			return ExitError
		}
	}

	a.logger.Debug("range served", "path", path, "cached_chunks", l.Cached())
	if a.cfg.Raw {
		err = a.out.Write(data)
	} else {
		err = a.out.Write(a.formatter(false).Format(nil, r))
	}
	if err != nil {
		a.logger.Error("write failed", "err", err)
		return ExitError
	}
	if !r.OK() {
		return ExitError
	}
	return ExitOK
}

// Find lists the documents under the configured roots with their sizes.
// Candidates whose header lacks the PDF magic are skipped unless AnyFile is set.
func (a *App) Find() int {
	roots := a.cfg.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	found, err := picker.Find(roots, picker.FindOptions{
		Filter:   a.filter,
		NoIgnore: a.cfg.NoIgnore,
		Hidden:   a.cfg.Hidden,
		OnError: func(err error) {
			a.logger.Warn("skipping", "err", err)
		},
	})
	if err != nil {
		a.logger.Error("find failed", "err", err)
		return ExitError
	}

	if !a.cfg.AnyFile {
		found = a.sniff(found)
	}
	if len(found) == 0 {
		return ExitNone
	}
	return a.runJobs(output.OpProbe, found, false)
}

// sniffSize is how much of a file IsPDF inspects.
const sniffSize = 1024

func (a *App) sniff(paths []string) []string {
	kept := paths[:0]
	for _, p := range paths {
		head, err := a.reader.ReadChunk(p, sniffSize, 0)
		if err != nil {
			a.logger.Warn("skipping unreadable file", "path", p, "err", err)
			continue
		}
		if !picker.IsPDF(head) {
			a.logger.Info("skipping file without PDF header", "path", p)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// Watch loads a document and re-probes it each time it changes on disk,
// until ctx is cancelled.
func (a *App) Watch(ctx context.Context) int {
	path, code, ok := a.pickOne()
	if !ok {
		return code
	}

	l, err := loader.Open(path, loader.Options{Reader: a.reader, Logger: a.logger})
	if err != nil {
		a.logFailure(output.Result{Op: output.OpProbe, Path: path, Err: err})
		return ExitError
	}

	w, err := watch.New()
	if err != nil {
		a.logger.Error("failed to create watcher", "err", err)
		return ExitError
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		a.logger.Error("failed to watch", "path", path, "err", err)
		return ExitError
	}

	f := a.formatter(false)
	emit := func(info input.FileInfo, err error) {
		r := output.Result{Op: output.OpProbe, Path: path, Info: info, Err: err}
		if err != nil {
			a.logFailure(r)
		}
		if werr := a.out.Write(f.Format(nil, r)); werr != nil {
			a.logger.Error("write failed", "err", werr)
		}
	}
	emit(l.Info(), nil)

	debounce := a.cfg.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()

	events := w.Events()
	for {
		select {
		case <-ctx.Done():
			return ExitOK
		case evt, ok := <-events:
			if !ok {
				return ExitOK
			}
			if evt.Err != nil {
				a.logger.Warn("watch error", "err", evt.Err)
				continue
			}
			a.logger.Debug("change detected", "path", evt.Path, "event", evt.Type)
			if evt.Type == watch.EventRemoved {
				l.Reset()
				a.logger.Warn("document removed", "path", evt.Path)
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			emit(l.Refresh())
		}
	}
}
