package wipe

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Request describes one erasure invocation. Target is the raw user path;
// Device is non-nil when the target is a block device, carrying the extent
// reported by the device-info collaborator.
type Request struct {
	Target           string
	Device           *DeviceExtent
	Method           WipeMethod
	Verify           VerifyPolicy
	Concurrency      int
	UnitTimeout      time.Duration
	AbortAllOnDenial bool
	DryRun           bool

	ChunkSize    int64
	MaxSpeedMBps float64
	SyncInterval int64
	Protected    []string
}

// Engine wires resolver, guard, scheduler and record builder into one
// invocation. No erasure state survives between invocations: every Run
// builds its own context and sealed record.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log}
}

// Run executes the full invocation and returns the sealed record. The
// returned error is invocation-level only (invalid method, unresolvable
// target, record misuse): per-unit failures live inside the record.
// Invocation-level errors abort before any destructive action.
func (e *Engine) Run(ctx context.Context, req Request) (*WipeRecord, error) {
	passes, err := PassesFor(req.Method)
	if err != nil {
		return nil, err
	}

	policy := req.Verify
	if policy.Mode == "" {
		policy.Mode = VerifyFull
	}
	if policy.Mode == VerifyNone && req.Method.RequiresVerification() {
		// The standard mandates confirmation of erasure; the policy may
		// widen verification but never switch it off.
		e.log.Warn("verification cannot be disabled for this method, forcing full read-back",
			zap.String("method", string(req.Method)))
		policy.Mode = VerifyFull
	}

	resolver := NewResolver(e.log)
	var units []WipeTarget
	if req.Device != nil {
		units = resolver.ResolveDevice(*req.Device)
	} else {
		units, err = resolver.Resolve(req.Target)
		if err != nil {
			return nil, err
		}
	}

	e.log.Info("starting wipe run",
		zap.String("target", req.Target),
		zap.String("method", string(req.Method)),
		zap.String("verify", string(policy.Mode)),
		zap.Int("units", len(units)),
		zap.Bool("dry_run", req.DryRun))

	guard := NewSafetyGuard(req.Protected, e.log)
	exec := NewExecutor(ExecutorConfig{
		ChunkSize:    req.ChunkSize,
		MaxSpeedMBps: req.MaxSpeedMBps,
		SyncInterval: req.SyncInterval,
	}, e.log)
	verifier := NewVerifier(policy, req.ChunkSize, e.log)
	builder := NewRecordBuilder(req.Target, req.Method)

	sched := NewScheduler(passes, SchedulerConfig{
		Concurrency:      req.Concurrency,
		UnitTimeout:      req.UnitTimeout,
		AbortAllOnDenial: req.AbortAllOnDenial,
		DryRun:           req.DryRun,
	}, guard, exec, verifier, builder, e.log)

	outcome := sched.Run(ctx, units)

	record, err := builder.Seal(outcome)
	if err != nil {
		return nil, err
	}

	e.log.Info("wipe run sealed",
		zap.String("record_id", record.ID),
		zap.String("outcome", string(record.Outcome)),
		zap.String("integrity_digest", record.IntegrityDigest))
	return record, nil
}
