// file: internal/archive/engine.go
// version: 1.1.0
// guid: 5a1c8e3f-b946-4d27-a0e5-c3f7b2d98164

// Package archive runs zip jobs on the shared operation queue and hands the
// finished archive to exactly one collector.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/operations"
)

// OperationType labels archive jobs on the operation queue.
const OperationType = "archive"

var (
	// ErrSourceNotFound means the path to archive does not exist.
	ErrSourceNotFound = errors.New("archive source not found")
	// ErrJobNotFound means no job has the given id.
	ErrJobNotFound = errors.New("archive job not found")
	// ErrJobNotReady means the job exists but has no result to collect.
	ErrJobNotReady = errors.New("archive job not ready")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
	// StatusCollecting marks a ready job claimed by a download.
	StatusCollecting Status = "collecting"
)

// Job is a snapshot of one archive job.
type Job struct {
	ID         string    `json:"job_id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	Size       int64     `json:"size,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ResultPath string    `json:"-"`
	source     string
}

// Public returns the job as polling clients see it: queued jobs are reported
// as processing at 0% and a claimed job still reads as ready.
func (j Job) Public() Job {
	switch j.Status {
	case StatusQueued:
		j.Status = StatusProcessing
		j.Progress = 0
	case StatusCollecting:
		j.Status = StatusReady
	}
	return j
}

// Finished reports whether the job reached ready or error.
func (j Job) Finished() bool {
	return j.Status == StatusReady || j.Status == StatusError
}

// DownloadName is the file name offered to the collector.
func (j Job) DownloadName() string {
	return j.Name + ".zip"
}

// Config configures an Engine.
type Config struct {
	TempDir    string
	ChunkBytes int
}

// Engine owns the job table. All access goes through its mutex.
type Engine struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	queue      *operations.OperationQueue
	tempDir    string
	chunkBytes int
	now        func() time.Time
}

// NewEngine creates an Engine that runs jobs on queue.
func NewEngine(queue *operations.OperationQueue, cfg Config) *Engine {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Engine{
		jobs:       make(map[string]*Job),
		queue:      queue,
		tempDir:    tempDir,
		chunkBytes: cfg.ChunkBytes,
		now:        time.Now,
	}
}

// Start registers a job for src (an absolute path) and queues it. A full
// queue rejects the job with operations.ErrQueueFull and nothing is kept.
func (e *Engine) Start(src string) (Job, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Job{}, fmt.Errorf("%s: %w", filepath.Base(src), ErrSourceNotFound)
		}
		return Job{}, fmt.Errorf("stat archive source: %w", err)
	}

	now := e.now()
	job := &Job{
		ID:        ulid.Make().String(),
		Name:      archiveName(src),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		source:    src,
	}

	e.mu.Lock()
	e.jobs[job.ID] = job
	snapshot := *job
	e.mu.Unlock()

	e.queue.AddListener(job.ID, e.onProgress)
	if err := e.queue.Enqueue(job.ID, OperationType, e.run(job.ID)); err != nil {
		e.queue.RemoveListeners(job.ID)
		e.mu.Lock()
		delete(e.jobs, job.ID)
		e.mu.Unlock()
		return Job{}, err
	}

	logging.Info().Str("job_id", job.ID).Str("source", src).Msg("archive job queued")
	return snapshot, nil
}

func (e *Engine) run(id string) operations.OperationFunc {
	return func(ctx context.Context, progress operations.ProgressReporter) error {
		src, name, ok := e.begin(id)
		if !ok {
			return fmt.Errorf("%s: %w", id, ErrJobNotFound)
		}

		dest := filepath.Join(e.tempDir, fmt.Sprintf("%s-%s.zip", name, id))
		size, err := WriteZip(ctx, src, dest, e.chunkBytes, func(written, total int64) {
			_ = progress.UpdateProgress(written, total, "")
		})
		if err != nil {
			e.fail(id, err)
			return err
		}
		if !e.complete(id, dest, size) {
			// Job vanished while running (expired or shut down)
			_ = os.Remove(dest)
		}
		return nil
	}
}

func (e *Engine) begin(id string) (src, name string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return "", "", false
	}
	job.Status = StatusProcessing
	job.UpdatedAt = e.now()
	return job.source, job.Name, true
}

// onProgress converts byte counts to a percentage. Values never decrease and
// stay below 100 until the job is ready.
func (e *Engine) onProgress(id string, p operations.OperationProgress) {
	if p.Total <= 0 {
		return
	}
	pct := int(p.Current * 100 / p.Total)
	pct = min(max(pct, 0), 99)

	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok || job.Status != StatusProcessing {
		return
	}
	if pct > job.Progress {
		job.Progress = pct
		job.UpdatedAt = e.now()
	}
}

func (e *Engine) complete(id, dest string, size int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return false
	}
	job.Status = StatusReady
	job.Progress = 100
	job.ResultPath = dest
	job.Size = size
	job.UpdatedAt = e.now()
	logging.Info().Str("job_id", id).Int64("bytes", size).Msg("archive ready")
	return true
}

func (e *Engine) fail(id string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return
	}
	job.Status = StatusError
	job.Error = err.Error()
	job.UpdatedAt = e.now()
}

// Status returns a snapshot of the job.
func (e *Engine) Status(id string) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return *job, nil
}

// Jobs returns snapshots of every tracked job.
func (e *Engine) Jobs() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		out = append(out, *j)
	}
	return out
}

// Open claims a ready job and returns its archive for reading. Only one
// caller can hold the claim; others get ErrJobNotFound. The caller must
// Close the file and then call Finish, or Release if the transfer failed.
func (e *Engine) Open(id string) (*os.File, Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[id]
	if !ok {
		return nil, Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	switch job.Status {
	case StatusReady:
	case StatusCollecting:
		return nil, Job{}, fmt.Errorf("%s is already being collected: %w", id, ErrJobNotFound)
	default:
		return nil, *job, fmt.Errorf("%s is %s: %w", id, job.Status, ErrJobNotReady)
	}

	f, err := os.Open(job.ResultPath)
	if err != nil {
		return nil, *job, fmt.Errorf("open archive: %w", err)
	}
	job.Status = StatusCollecting
	job.UpdatedAt = e.now()
	return f, *job, nil
}

// Release hands a claimed job back so it can be collected again.
func (e *Engine) Release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if job, ok := e.jobs[id]; ok && job.Status == StatusCollecting {
		job.Status = StatusReady
		job.UpdatedAt = e.now()
	}
}

// Finish deletes the archive file and forgets the job.
func (e *Engine) Finish(id string) error {
	e.mu.Lock()
	job, ok := e.jobs[id]
	if ok {
		delete(e.jobs, id)
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if job.ResultPath == "" {
		return nil
	}
	if err := os.Remove(job.ResultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// Expire removes finished jobs, and their files, last updated more than
// olderThan ago. It returns how many were removed.
func (e *Engine) Expire(olderThan time.Duration) int {
	cutoff := e.now().Add(-olderThan)

	e.mu.Lock()
	var stale []*Job
	for id, job := range e.jobs {
		if job.Finished() && job.UpdatedAt.Before(cutoff) {
			stale = append(stale, job)
			delete(e.jobs, id)
		}
	}
	e.mu.Unlock()

	for _, job := range stale {
		if job.ResultPath != "" {
			if err := os.Remove(job.ResultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.Warn().Err(err).Str("job_id", job.ID).Msg("failed to remove expired archive")
			}
		}
	}
	if len(stale) > 0 {
		logging.Info().Int("count", len(stale)).Msg("expired uncollected archives")
	}
	return len(stale)
}

func archiveName(src string) string {
	name := strings.TrimSuffix(filepath.Base(filepath.Clean(src)), string(filepath.Separator))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "archive"
	}
	return name
}
