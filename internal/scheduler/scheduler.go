package scheduler

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/dl/pdfload/internal/input"
	"github.com/dl/pdfload/internal/output"
)

// Job is one read request.
type Job struct {
	ID        uuid.UUID
	Op        output.Op
	Path      string
	ChunkSize int
	Offset    int64
}

// NewJob creates a Job with a fresh ID.
func NewJob(op output.Op, path string) Job {
	return Job{ID: uuid.New(), Op: op, Path: path}
}

// Scheduler manages a pool of workers that run read jobs concurrently,
// so the caller's goroutine never blocks on file I/O.
type Scheduler struct {
	workers int
	reader  input.Reader
}

// New creates a Scheduler with the given number of workers.
// If workers is 0, defaults to NumCPU * 2.
func New(workers int, r input.Reader) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &Scheduler{
		workers: workers,
		reader:  r,
	}
}

// Run processes jobs from the channel and returns results on the result channel.
// Sequence numbers follow the order jobs were taken from the channel.
func (s *Scheduler) Run(jobs <-chan Job) <-chan output.Result {
	resultCh := make(chan output.Result, s.workers*2)

	// Sequence numbers are assigned under the lock that pulls the job, so
	// they match channel order even with many workers.
	var mu sync.Mutex
	seq := 0
	next := func() (Job, int, bool) {
		mu.Lock()
		defer mu.Unlock()
		job, ok := <-jobs
		if !ok {
			return Job{}, 0, false
		}
		seq++
		return job, seq, true
	}

	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, seqNum, ok := next()
				if !ok {
					return
				}
				result := s.Execute(job)
				result.SeqNum = seqNum
				resultCh <- result
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	return resultCh
}

// Submit runs one job on its own goroutine and waits for it. If ctx ends
// first, Submit returns ctx.Err(); the read itself runs to completion and its
// result is dropped.
func (s *Scheduler) Submit(ctx context.Context, job Job) (output.Result, error) {
	done := make(chan output.Result, 1)
	go func() {
		done <- s.Execute(job)
	}()

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return output.Result{}, ctx.Err()
	}
}

// Execute runs job on the calling goroutine.
func (s *Scheduler) Execute(job Job) output.Result {
	result := output.Result{
		JobID:  job.ID,
		Op:     job.Op,
		Path:   job.Path,
		Offset: job.Offset,
	}

	switch job.Op {
	case output.OpProbe:
		result.Info, result.Err = s.reader.Probe(job.Path)
	case output.OpWhole:
		result.Data, result.Err = s.reader.ReadWhole(job.Path)
		if result.Err == nil {
			result.Info = input.FileInfo{
				Path:      job.Path,
				Size:      int64(len(result.Data)),
				SizeLabel: input.FormatSize(int64(len(result.Data))),
			}
		}
	case output.OpChunk:
		result.Data, result.Err = s.reader.ReadChunk(job.Path, job.ChunkSize, job.Offset)
	}
	return result
}
