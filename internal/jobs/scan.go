// Package jobs defines River Queue job types for async processing.
//
// With PostgreSQL, on-demand scans are River jobs so that several server
// instances share one queue and repeated requests coalesce. With SQLite
// there is no queue and the Dispatcher runs the cycle on the worker pool.
//
// Import Path: sphincs.io/sphincs/internal/jobs
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/pkg/worker"
	"sphincs.io/sphincs/internal/scanner"
)

// ScanDedupWindow is how long identical scan requests coalesce into one job.
const ScanDedupWindow = 10 * time.Second

// ---------------------------------------------------------------------------
// Job Args
// ---------------------------------------------------------------------------

// ScanArgs requests one immediate scanner cycle.
type ScanArgs struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Kind returns the job kind identifier for on-demand scans.
func (ScanArgs) Kind() string { return "condition_scan" }

// InsertOpts makes requests inside one dedup window share a job.
func (ScanArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: ScanDedupWindow,
			ByQueue:  true,
		},
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

// CycleRunner runs one scanner cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) scanner.CycleReport
}

// ScanWorker runs a scanner cycle for each ScanArgs job.
type ScanWorker struct {
	river.WorkerDefaults[ScanArgs]
	runner CycleRunner
}

// NewScanWorker creates a scan worker.
func NewScanWorker(runner CycleRunner) *ScanWorker {
	return &ScanWorker{runner: runner}
}

// Work runs the cycle. Individual pass failures are logged by the scanner;
// the job fails only when no pass completed.
func (w *ScanWorker) Work(ctx context.Context, job *river.Job[ScanArgs]) error {
	if w == nil || w.runner == nil {
		return fmt.Errorf("scan worker is not initialized")
	}
	report := w.runner.RunCycle(ctx)

	requestedBy := ""
	if job != nil {
		requestedBy = job.Args.RequestedBy
	}
	logger.Info("on-demand scan completed",
		zap.String("requested_by", requestedBy),
		zap.Int("passes", len(report.Passes)),
		zap.Int("failed_passes", len(report.Failed())),
	)
	if n := len(report.Passes); n > 0 && len(report.Failed()) == n {
		return fmt.Errorf("all %d scan passes failed", n)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// Inserter is the River client call the dispatcher uses.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Submitter runs a task on a worker pool.
type Submitter interface {
	SubmitDetached(poolName string, task worker.Task) error
}

// Dispatch modes.
const (
	ModeQueued = "queued"
	ModeLocal  = "local"
)

// DispatchResult describes how a scan request was handled.
type DispatchResult struct {
	Mode      string `json:"mode"`
	JobID     int64  `json:"job_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// ErrNoScanBackend is returned when neither a queue nor a pool is wired.
var ErrNoScanBackend = errors.New("no scan backend configured")

// Dispatcher starts an on-demand scan on whichever backend is available.
type Dispatcher struct {
	queue  Inserter
	pool   Submitter
	runner CycleRunner
}

// NewDispatcher creates a dispatcher. queue may be nil, in which case the
// cycle is submitted to pool.
func NewDispatcher(queue Inserter, pool Submitter, runner CycleRunner) *Dispatcher {
	return &Dispatcher{queue: queue, pool: pool, runner: runner}
}

// Dispatch requests one scan cycle without waiting for it.
func (d *Dispatcher) Dispatch(ctx context.Context, requestedBy string) (DispatchResult, error) {
	if d.queue != nil {
		res, err := d.queue.Insert(ctx, ScanArgs{RequestedBy: requestedBy}, nil)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("enqueue scan: %w", err)
		}
		out := DispatchResult{Mode: ModeQueued, Duplicate: res.UniqueSkippedAsDuplicate}
		if res.Job != nil {
			out.JobID = res.Job.ID
		}
		return out, nil
	}

	if d.pool == nil || d.runner == nil {
		return DispatchResult{}, ErrNoScanBackend
	}
	err := d.pool.SubmitDetached(worker.PoolGeneral, func(ctx context.Context) {
		report := d.runner.RunCycle(ctx)
		logger.Info("on-demand scan completed",
			zap.String("requested_by", requestedBy),
			zap.Int("failed_passes", len(report.Failed())),
		)
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("submit scan: %w", err)
	}
	return DispatchResult{Mode: ModeLocal}, nil
}
