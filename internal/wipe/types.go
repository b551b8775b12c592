package wipe

import (
	"time"
)

// TargetKind определяет вид единицы затирания
type TargetKind string

const (
	KindFile     TargetKind = "file"
	KindDirEntry TargetKind = "dir-entry"
	KindDevice   TargetKind = "device"
)

// WipeTarget is one erasure unit: a concrete extent the executor overwrites.
// Directory inputs expand into one target per contained regular file plus a
// synthetic dir-entry target removed after its files.
type WipeTarget struct {
	Path   string
	Kind   TargetKind
	Length int64
}

// DeviceExtent describes a block device handed to the engine by the
// device-info collaborator. The engine never infers device size by trial.
type DeviceExtent struct {
	Path string
	Size int64
}

// PassOutcome статус одного прохода
type PassOutcome string

const (
	PassCompleted PassOutcome = "completed"
	PassAborted   PassOutcome = "aborted"
	PassIOError   PassOutcome = "ioerror"
)

// PassResult records one method pass applied to one target.
type PassResult struct {
	Pattern      PatternKind `json:"pattern"`
	Index        int         `json:"index"`
	BytesWritten int64       `json:"bytes_written"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      time.Time   `json:"ended_at"`
	Outcome      PassOutcome `json:"outcome"`
	Detail       string      `json:"detail,omitempty"`
}

// VerifyOutcome статус проверки затирания
type VerifyOutcome string

const (
	VerifyVerified VerifyOutcome = "verified"
	VerifyMismatch VerifyOutcome = "mismatch"
	VerifySkipped  VerifyOutcome = "skipped"
)

// VerificationResult is the post-pass read-back outcome for one target.
// Fingerprint holds the BLAKE3 digest of the extent content when a full
// read was performed.
type VerificationResult struct {
	Outcome     VerifyOutcome `json:"outcome"`
	Offset      int64         `json:"offset,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}

// UnitStatus итоговый статус единицы затирания
type UnitStatus string

const (
	UnitCompleted      UnitStatus = "completed"
	UnitPartialFailure UnitStatus = "partial_failure"
	UnitAborted        UnitStatus = "aborted"
)

// UnitOutcome aggregates everything that happened to one target: its pass
// results, the verification verdict and the final status. Immutable once
// appended to a record.
type UnitOutcome struct {
	ID           string             `json:"id"`
	Target       string             `json:"target"`
	Kind         TargetKind         `json:"kind"`
	Passes       []PassResult       `json:"passes"`
	Verification VerificationResult `json:"verification"`
	Status       UnitStatus         `json:"outcome"`
	Detail       string             `json:"detail,omitempty"`
	Denied       bool               `json:"denied,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	EndedAt      time.Time          `json:"ended_at"`
}

// RunOutcome итоговый статус всего запуска
type RunOutcome string

const (
	RunSuccess        RunOutcome = "success"
	RunPartialFailure RunOutcome = "partial_failure"
	RunAborted        RunOutcome = "aborted"
)
