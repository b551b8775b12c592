package wipe

import (
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUnits() []UnitOutcome {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return []UnitOutcome{
		{
			ID:     "unit-1",
			Target: "/data/a.txt",
			Kind:   KindFile,
			Passes: []PassResult{
				{Pattern: PatternZeros, Index: 0, BytesWritten: 10, StartedAt: ts, EndedAt: ts, Outcome: PassCompleted},
				{Pattern: PatternOnes, Index: 1, BytesWritten: 10, StartedAt: ts, EndedAt: ts, Outcome: PassCompleted},
				{Pattern: PatternRandom, Index: 2, BytesWritten: 10, StartedAt: ts, EndedAt: ts, Outcome: PassCompleted},
			},
			Verification: VerificationResult{Outcome: VerifyVerified, Fingerprint: "aa"},
			Status:       UnitCompleted,
			StartedAt:    ts,
			EndedAt:      ts,
		},
		{
			ID:           "unit-2",
			Target:       "/data",
			Kind:         KindDirEntry,
			Verification: VerificationResult{Outcome: VerifySkipped, Detail: "directory entry has no extent"},
			Status:       UnitCompleted,
			StartedAt:    ts,
			EndedAt:      ts,
		},
	}
}

func TestChainDigestDeterministic(t *testing.T) {
	units := sampleUnits()
	assert.Equal(t, ChainDigest(units), ChainDigest(units))
	assert.Len(t, ChainDigest(units), 64)
}

func TestChainDigestDetectsReorderAndRemoval(t *testing.T) {
	units := sampleUnits()
	full := ChainDigest(units)

	reordered := []UnitOutcome{units[1], units[0]}
	assert.NotEqual(t, full, ChainDigest(reordered))

	truncated := units[:1]
	assert.NotEqual(t, full, ChainDigest(truncated))
}

func TestRecordBuilderSealReproducesChain(t *testing.T) {
	units := sampleUnits()

	b := NewRecordBuilder("/data", MethodDoD)
	for _, u := range units {
		require.NoError(t, b.Append(u))
	}
	rec, err := b.Seal(RunSuccess)
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, rec.Outcome)
	assert.Equal(t, ChainDigest(units), rec.IntegrityDigest)
	require.NoError(t, rec.CheckIntegrity())
	assert.False(t, rec.EndedAt.Before(rec.StartedAt))
	assert.NotEmpty(t, rec.ID)
}

func TestCheckIntegrityDetectsTampering(t *testing.T) {
	b := NewRecordBuilder("/data", MethodNIST)
	for _, u := range sampleUnits() {
		require.NoError(t, b.Append(u))
	}
	rec, err := b.Seal(RunSuccess)
	require.NoError(t, err)

	rec.Units[0].Status = UnitAborted
	assert.Error(t, rec.CheckIntegrity())
}

func TestSealTwiceFails(t *testing.T) {
	b := NewRecordBuilder("/data", MethodQuick)
	_, err := b.Seal(RunAborted)
	require.NoError(t, err)

	_, err = b.Seal(RunAborted)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrAlreadySealed))
}

func TestAppendAfterSealFails(t *testing.T) {
	b := NewRecordBuilder("/data", MethodQuick)
	_, err := b.Seal(RunSuccess)
	require.NoError(t, err)

	err = b.Append(sampleUnits()[0])
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrRecordSealed))
}

func TestAppendSerializesConcurrentWriters(t *testing.T) {
	b := NewRecordBuilder("/data", MethodQuick)
	units := sampleUnits()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = b.Append(units[0])
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	require.Equal(t, 400, b.UnitCount())
	rec, err := b.Seal(RunSuccess)
	require.NoError(t, err)
	require.NoError(t, rec.CheckIntegrity())
}
