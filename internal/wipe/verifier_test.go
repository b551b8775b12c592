package wipe

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestVerifier(mode VerifyMode) *Verifier {
	return NewVerifier(VerifyPolicy{Mode: mode, SampleCount: 8, SampleWindow: 64}, 1024, zap.NewNop())
}

func TestVerifyFullConstantPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiped.bin")
	writeFile(t, path, bytes.Repeat([]byte{0xFF}, 5000))

	target := WipeTarget{Path: path, Kind: KindFile, Length: 5000}
	res := newTestVerifier(VerifyFull).Verify(context.Background(), target, PassSpec{Pattern: PatternOnes}, "")

	require.Equal(t, VerifyVerified, res.Outcome, res.Detail)
	assert.NotEmpty(t, res.Fingerprint)
}

func TestVerifyFullDetectsMismatch(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 5000)
	data[1337] = 0x42
	path := filepath.Join(t.TempDir(), "wiped.bin")
	writeFile(t, path, data)

	target := WipeTarget{Path: path, Kind: KindFile, Length: 5000}
	res := newTestVerifier(VerifyFull).Verify(context.Background(), target, PassSpec{Pattern: PatternZeros}, "")

	require.Equal(t, VerifyMismatch, res.Outcome)
	assert.Equal(t, int64(1337), res.Offset)
}

func TestVerifyFullShortExtentIsMismatch(t *testing.T) {
	// A pass that failed mid-write leaves the extent shorter than the
	// recorded length; that must never verify.
	path := filepath.Join(t.TempDir(), "short.bin")
	writeFile(t, path, bytes.Repeat([]byte{0x00}, 100))

	target := WipeTarget{Path: path, Kind: KindFile, Length: 500}
	res := newTestVerifier(VerifyFull).Verify(context.Background(), target, PassSpec{Pattern: PatternZeros}, "")

	assert.Equal(t, VerifyMismatch, res.Outcome)
}

func TestVerifyRandomAgainstFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiped.bin")
	content := make([]byte, 8192)
	require.NoError(t, FillPattern(content, PatternRandom))
	writeFile(t, path, content)

	pre, err := Fingerprint(path)
	require.NoError(t, err)

	target := WipeTarget{Path: path, Kind: KindFile, Length: 8192}
	v := newTestVerifier(VerifyFull)

	// Same fingerprint as before the "wipe": original content survived.
	res := v.Verify(context.Background(), target, PassSpec{Pattern: PatternRandom}, pre)
	assert.Equal(t, VerifyMismatch, res.Outcome)

	// Different pre-wipe fingerprint: content was replaced.
	res = v.Verify(context.Background(), target, PassSpec{Pattern: PatternRandom}, "decafbad")
	assert.Equal(t, VerifyVerified, res.Outcome, res.Detail)
	assert.Equal(t, pre, res.Fingerprint)
}

func TestVerifySampledConstant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiped.bin")
	writeFile(t, path, bytes.Repeat([]byte{0x00}, 64*1024))

	target := WipeTarget{Path: path, Kind: KindFile, Length: 64 * 1024}
	res := newTestVerifier(VerifySampled).Verify(context.Background(), target, PassSpec{Pattern: PatternZeros}, "")
	assert.Equal(t, VerifyVerified, res.Outcome, res.Detail)
}

func TestVerifySampledDetectsUniformMismatch(t *testing.T) {
	// Entirely wrong fill value: every sampled window must trip.
	path := filepath.Join(t.TempDir(), "wiped.bin")
	writeFile(t, path, bytes.Repeat([]byte{0xAB}, 64*1024))

	target := WipeTarget{Path: path, Kind: KindFile, Length: 64 * 1024}
	res := newTestVerifier(VerifySampled).Verify(context.Background(), target, PassSpec{Pattern: PatternZeros}, "")
	assert.Equal(t, VerifyMismatch, res.Outcome)
}

func TestVerifyPolicyNone(t *testing.T) {
	target := WipeTarget{Path: "/nonexistent", Kind: KindFile, Length: 10}
	res := newTestVerifier(VerifyNone).Verify(context.Background(), target, PassSpec{Pattern: PatternZeros}, "")
	assert.Equal(t, VerifySkipped, res.Outcome)
}

func TestVerifyZeroLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	writeFile(t, path, nil)

	target := WipeTarget{Path: path, Kind: KindFile, Length: 0}
	res := newTestVerifier(VerifyFull).Verify(context.Background(), target, PassSpec{Pattern: PatternRandom}, "")
	assert.Equal(t, VerifyVerified, res.Outcome)
}

func TestVerifyDirEntrySkipped(t *testing.T) {
	target := WipeTarget{Path: t.TempDir(), Kind: KindDirEntry}
	res := newTestVerifier(VerifyFull).Verify(context.Background(), target, PassSpec{Pattern: PatternRandom}, "")
	assert.Equal(t, VerifySkipped, res.Outcome)
}

func TestFingerprintDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.bin")
	writeFile(t, path, []byte("fingerprint me"))

	a, err := Fingerprint(path)
	require.NoError(t, err)
	b, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // 32-byte digest, hex encoded

	require.NoError(t, os.WriteFile(path, []byte("different body"), 0o644))
	c, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
