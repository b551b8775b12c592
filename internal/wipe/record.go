package wipe

import (
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

var (
	// ErrAlreadySealed is raised by a second Seal call. Programming-contract
	// violation, fatal to the caller.
	ErrAlreadySealed = cerr.New("wipe record already sealed")
	// ErrRecordSealed is raised when appending to a sealed record.
	ErrRecordSealed = cerr.New("wipe record is sealed")
)

// WipeRecord is the boundary artifact of an invocation: one append-only
// record of what was destroyed, how, and with what verification outcome.
// The integrity digest chains every unit outcome into the digest of the
// previous one, so reordering or removing entries after the fact is
// detectable by any consumer.
type WipeRecord struct {
	ID              string        `json:"id"`
	Target          string        `json:"target"`
	Method          WipeMethod    `json:"method"`
	Units           []UnitOutcome `json:"units"`
	Outcome         RunOutcome    `json:"outcome"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         time.Time     `json:"ended_at"`
	IntegrityDigest string        `json:"integrity_digest"`
}

// CheckIntegrity recomputes the chained digest from the ordered unit list
// and compares it to the sealed value.
func (r *WipeRecord) CheckIntegrity() error {
	want := ChainDigest(r.Units)
	if want != r.IntegrityDigest {
		return cerr.Newf("integrity digest mismatch: recomputed %s, record holds %s", want, r.IntegrityDigest)
	}
	return nil
}

// ChainDigest folds an ordered unit list into a single digest. Each entry's
// input includes the previous entry's digest. Deterministic: the same unit
// sequence always reproduces the same value.
func ChainDigest(units []UnitOutcome) string {
	var prev [32]byte
	for _, u := range units {
		prev = chainStep(prev, u)
	}
	return hex.EncodeToString(prev[:])
}

func chainStep(prev [32]byte, u UnitOutcome) [32]byte {
	payload, err := json.Marshal(u)
	if err != nil {
		// Marshalling a plain value struct cannot fail.
		panic(err)
	}
	h := blake3.New()
	h.Write(prev[:])
	h.Write(payload)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// RecordBuilder is the single writer of a WipeRecord. Workers hand their
// unit outcomes to Append; the mutex serializes them so the chain is
// computed in completion order.
type RecordBuilder struct {
	mu     sync.Mutex
	record *WipeRecord
	chain  [32]byte
	sealed bool
}

func NewRecordBuilder(target string, method WipeMethod) *RecordBuilder {
	return &RecordBuilder{
		record: &WipeRecord{
			ID:        uuid.NewString(),
			Target:    target,
			Method:    method,
			StartedAt: time.Now(),
		},
	}
}

// Append folds one unit outcome into the record and its chained digest.
func (b *RecordBuilder) Append(u UnitOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return cerr.Wrapf(ErrRecordSealed, "appending unit %s", u.Target)
	}

	b.record.Units = append(b.record.Units, u)
	b.chain = chainStep(b.chain, u)
	return nil
}

// Seal finalizes the digest and closes the record to further mutation.
// Calling it twice is a contract violation.
func (b *RecordBuilder) Seal(outcome RunOutcome) (*WipeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return nil, ErrAlreadySealed
	}
	b.sealed = true

	b.record.Outcome = outcome
	b.record.EndedAt = time.Now()
	b.record.IntegrityDigest = hex.EncodeToString(b.chain[:])
	return b.record, nil
}

// UnitCount returns the number of appended units so far.
func (b *RecordBuilder) UnitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.record.Units)
}
