package wipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchedulerConfig bounds the worker pool and per-unit execution.
type SchedulerConfig struct {
	Concurrency      int
	UnitTimeout      time.Duration
	AbortAllOnDenial bool
	DryRun           bool
}

// Scheduler dispatches erasure units to a bounded pool of workers and
// feeds their outcomes to the record builder in completion order.
// Units on the same device are serialized: concurrent passes over one
// device would interleave writes and void the erasure guarantee. Distinct
// devices proceed in parallel.
type Scheduler struct {
	passes  []PassSpec
	cfg     SchedulerConfig
	guard   *SafetyGuard
	exec    *Executor
	verify  *Verifier
	builder *RecordBuilder
	log     *zap.Logger

	deviceMu    sync.Mutex
	deviceLocks map[string]*sync.Mutex
	aborted     atomic.Bool
	cancel      context.CancelFunc

	mu        sync.Mutex
	outcomes  []UnitOutcome
	succeeded map[string]bool
}

func NewScheduler(passes []PassSpec, cfg SchedulerConfig, guard *SafetyGuard, exec *Executor, verify *Verifier, builder *RecordBuilder, log *zap.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency()
	}
	return &Scheduler{
		passes:      passes,
		cfg:         cfg,
		guard:       guard,
		exec:        exec,
		verify:      verify,
		builder:     builder,
		log:         log,
		deviceLocks: make(map[string]*sync.Mutex),
		succeeded:   make(map[string]bool),
	}
}

// defaultConcurrency follows available parallel I/O channels, capped so a
// single run cannot saturate every spindle on the host.
func defaultConcurrency() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run processes all units and returns the aggregate invocation outcome.
// File and device units run concurrently up to the pool bound; dir-entry
// units run afterwards, strictly ordered behind their contained files.
// Every dispatched unit ends with a recorded outcome, cancellation included.
func (s *Scheduler) Run(ctx context.Context, units []WipeTarget) RunOutcome {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	var work, dirEntries []WipeTarget
	for _, t := range units {
		if t.Kind == KindDirEntry {
			dirEntries = append(dirEntries, t)
		} else {
			work = append(work, t)
		}
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, t := range work {
		// An ended run dispatches nothing further, even when a worker
		// slot happens to be free.
		if runCtx.Err() != nil {
			s.finish(s.undispatched(t))
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			s.finish(s.undispatched(t))
			continue
		}

		wg.Add(1)
		go func(t WipeTarget) {
			defer wg.Done()
			defer func() { <-sem }()
			s.finish(s.processUnit(runCtx, t))
		}(t)
	}
	wg.Wait()

	for _, d := range dirEntries {
		s.finish(s.processDirEntry(runCtx, d))
	}

	cancelled := ctx.Err() != nil || s.aborted.Load()
	return s.aggregate(cancelled)
}

// processUnit is the full per-unit pipeline: safety gate, pass sequence,
// verification, then removal of the spent file entry.
func (s *Scheduler) processUnit(ctx context.Context, t WipeTarget) UnitOutcome {
	out := UnitOutcome{
		ID:        uuid.NewString(),
		Target:    t.Path,
		Kind:      t.Kind,
		StartedAt: time.Now(),
	}

	// The guard runs per unit, right before the first pass: directory
	// expansion can surface paths invisible at invocation time.
	if err := s.guard.Authorize(t); err != nil {
		s.log.Warn("unit denied", zap.String("target", t.Path), zap.Error(err))
		out.Denied = true
		out.Status = UnitAborted
		out.Detail = err.Error()
		out.Verification = VerificationResult{Outcome: VerifySkipped, Detail: "safety check denied"}
		out.EndedAt = time.Now()
		if s.cfg.AbortAllOnDenial {
			s.aborted.Store(true)
			s.cancel()
		}
		return out
	}

	if s.cfg.DryRun {
		out.Status = UnitCompleted
		out.Verification = VerificationResult{Outcome: VerifySkipped, Detail: "dry run"}
		out.EndedAt = time.Now()
		return out
	}

	if t.Kind == KindDevice {
		lock := s.deviceLock(t.Path)
		lock.Lock()
		defer lock.Unlock()
	}

	unitCtx := ctx
	if s.cfg.UnitTimeout > 0 {
		var cancelUnit context.CancelFunc
		unitCtx, cancelUnit = context.WithTimeout(ctx, s.cfg.UnitTimeout)
		defer cancelUnit()
	}

	if t.Kind == KindFile {
		// Read-only mode bits would fail the overwrite open.
		if err := os.Chmod(t.Path, 0o600); err != nil {
			s.log.Debug("chmod before wipe failed", zap.String("target", t.Path), zap.Error(err))
		}
	}

	var preFingerprint string
	if s.verify.policy.Mode != VerifyNone && t.Length > 0 {
		fp, err := Fingerprint(t.Path)
		if err != nil {
			s.log.Warn("pre-wipe fingerprint unavailable", zap.String("target", t.Path), zap.Error(err))
		} else {
			preFingerprint = fp
		}
	}

	// Passes are strictly sequential within a unit; pass k never starts
	// before pass k-1 completed. A failed pass stops the sequence.
	for _, spec := range s.passes {
		res := s.exec.Execute(unitCtx, t, spec)
		out.Passes = append(out.Passes, res)
		if res.Outcome != PassCompleted {
			out.Status = UnitAborted
			out.Detail = res.Detail
			out.Verification = VerificationResult{Outcome: VerifySkipped, Detail: "pass sequence incomplete"}
			out.EndedAt = time.Now()
			return out
		}
	}

	last := s.passes[len(s.passes)-1]
	out.Verification = s.verify.Verify(unitCtx, t, last, preFingerprint)

	// Verification cut short by timeout or cancellation proves nothing:
	// without a recorded matching outcome the unit is aborted, never
	// reported completed.
	if err := unitCtx.Err(); err != nil {
		out.Status = UnitAborted
		out.Detail = cancelDetail(err)
		out.EndedAt = time.Now()
		return out
	}

	switch out.Verification.Outcome {
	case VerifyMismatch:
		out.Status = UnitPartialFailure
		out.Detail = fmt.Sprintf("verification mismatch at offset %d", out.Verification.Offset)
	default:
		out.Status = UnitCompleted
	}

	// The overwritten entry itself is destroyed once verification is done;
	// the extent content is already gone either way.
	if t.Kind == KindFile && out.Status == UnitCompleted {
		if err := removeFileEntry(t.Path); err != nil {
			s.log.Warn("file entry removal failed", zap.String("target", t.Path), zap.Error(err))
			out.Status = UnitPartialFailure
			out.Detail = fmt.Sprintf("entry removal failed: %v", err)
		}
	}

	out.EndedAt = time.Now()
	return out
}

// processDirEntry removes the directory itself. It is ordered strictly
// after every unit beneath it, and only proceeds when all of them completed.
func (s *Scheduler) processDirEntry(ctx context.Context, t WipeTarget) UnitOutcome {
	out := UnitOutcome{
		ID:           uuid.NewString(),
		Target:       t.Path,
		Kind:         t.Kind,
		StartedAt:    time.Now(),
		Verification: VerificationResult{Outcome: VerifySkipped, Detail: "directory entry has no extent"},
	}

	if ctx.Err() != nil {
		out.Status = UnitAborted
		out.Detail = "cancelled"
		out.EndedAt = time.Now()
		return out
	}

	if err := s.guard.Authorize(t); err != nil {
		out.Denied = true
		out.Status = UnitAborted
		out.Detail = err.Error()
		out.EndedAt = time.Now()
		if s.cfg.AbortAllOnDenial {
			s.aborted.Store(true)
			s.cancel()
		}
		return out
	}

	if !s.childrenSucceeded(t.Path) {
		out.Status = UnitAborted
		out.Detail = "contained entries were not fully wiped"
		out.EndedAt = time.Now()
		return out
	}

	if s.cfg.DryRun {
		out.Status = UnitCompleted
		out.Detail = "dry run"
		out.EndedAt = time.Now()
		return out
	}

	if err := removeDirEntry(t.Path); err != nil {
		out.Status = UnitAborted
		out.Detail = fmt.Sprintf("directory removal failed: %v", err)
	} else {
		out.Status = UnitCompleted
	}
	out.EndedAt = time.Now()
	return out
}

func (s *Scheduler) undispatched(t WipeTarget) UnitOutcome {
	now := time.Now()
	return UnitOutcome{
		ID:           uuid.NewString(),
		Target:       t.Path,
		Kind:         t.Kind,
		Status:       UnitAborted,
		Detail:       "cancelled before dispatch",
		Verification: VerificationResult{Outcome: VerifySkipped, Detail: "cancelled before dispatch"},
		StartedAt:    now,
		EndedAt:      now,
	}
}

// finish serializes outcomes into the record builder: single-writer
// discipline, chained in completion order.
func (s *Scheduler) finish(out UnitOutcome) {
	if err := s.builder.Append(out); err != nil {
		// Only possible via record misuse; nothing destructive follows.
		s.log.Error("failed to append unit outcome", zap.String("target", out.Target), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.outcomes = append(s.outcomes, out)
	s.succeeded[out.Target] = out.Status == UnitCompleted
	s.mu.Unlock()

	s.log.Info("unit finished",
		zap.String("target", out.Target),
		zap.String("kind", string(out.Kind)),
		zap.String("status", string(out.Status)),
		zap.String("verification", string(out.Verification.Outcome)))
}

// deviceLock returns the mutex serializing all units on one device node.
func (s *Scheduler) deviceLock(path string) *sync.Mutex {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()
	lock, ok := s.deviceLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.deviceLocks[path] = lock
	}
	return lock
}

func (s *Scheduler) childrenSucceeded(dir string) bool {
	prefix := dir + string(filepath.Separator)
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, ok := range s.succeeded {
		if strings.HasPrefix(path, prefix) && !ok {
			return false
		}
	}
	return true
}

func (s *Scheduler) aggregate(cancelled bool) RunOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancelled {
		return RunAborted
	}

	completed, denied := 0, 0
	for _, out := range s.outcomes {
		switch {
		case out.Status == UnitCompleted:
			completed++
		case out.Denied:
			denied++
		}
	}

	switch {
	case completed == len(s.outcomes):
		return RunSuccess
	case completed == 0 && denied == len(s.outcomes):
		// Nothing destructive happened at all.
		return RunAborted
	default:
		return RunPartialFailure
	}
}

func removeFileEntry(path string) error {
	// Truncation first: even if the unlink fails the directory entry no
	// longer references live pattern data of the original length.
	if f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0); err == nil {
		f.Close()
	}
	return os.Remove(path)
}

func removeDirEntry(path string) error {
	// Symlink entries were deliberately never wiped; drop the links
	// themselves so the directory can go.
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink != 0 {
			if err := os.Remove(filepath.Join(path, e.Name())); err != nil {
				return err
			}
		}
	}
	return os.Remove(path)
}
