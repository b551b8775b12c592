package wipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, method WipeMethod, cfg SchedulerConfig) (*Scheduler, *RecordBuilder) {
	t.Helper()
	log := zap.NewNop()
	passes, err := PassesFor(method)
	require.NoError(t, err)

	builder := NewRecordBuilder("test-run", method)
	sched := NewScheduler(passes, cfg,
		NewSafetyGuard(nil, log),
		NewExecutor(ExecutorConfig{ChunkSize: 4096}, log),
		NewVerifier(VerifyPolicy{Mode: VerifyFull}, 4096, log),
		builder, log)
	return sched, builder
}

func TestPassFailureStopsRemainingPasses(t *testing.T) {
	// A directory node passes the safety gate but cannot be opened for
	// writing, so the first of the three passes fails with an I/O error.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	sched, builder := newTestScheduler(t, MethodDoD, SchedulerConfig{Concurrency: 1})
	outcome := sched.Run(context.Background(), []WipeTarget{
		{Path: blocker, Kind: KindFile, Length: 8},
	})
	assert.Equal(t, RunPartialFailure, outcome)

	rec, err := builder.Seal(outcome)
	require.NoError(t, err)
	require.Len(t, rec.Units, 1)

	u := rec.Units[0]
	assert.Equal(t, UnitAborted, u.Status)
	require.Len(t, u.Passes, 1, "a failed pass stops the sequence")
	assert.Equal(t, PassIOError, u.Passes[0].Outcome)
	assert.Equal(t, VerifySkipped, u.Verification.Outcome)
}

func TestDeviceLockIsPerDevice(t *testing.T) {
	sched, _ := newTestScheduler(t, MethodQuick, SchedulerConfig{})

	a := sched.deviceLock("/dev/sdx")
	b := sched.deviceLock("/dev/sdy")
	assert.NotSame(t, a, b, "distinct devices must not share a lock")
	assert.Same(t, a, sched.deviceLock("/dev/sdx"))
}
