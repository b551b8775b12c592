package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"

	"securewipe_enterprise/internal/wipe"
)

// Summary сводка по запуску для внешних потребителей
type Summary struct {
	TotalUnits   int    `json:"total_units"`
	Completed    int    `json:"completed"`
	Partial      int    `json:"partial"`
	Aborted      int    `json:"aborted"`
	Denied       int    `json:"denied"`
	BytesWritten int64  `json:"bytes_written"`
	Duration     string `json:"duration"`
}

// envelope is what gets written to disk: the sealed record verbatim plus
// the derived summary. The record is the source of truth; the summary is
// convenience for the certificate renderer and log store.
type envelope struct {
	Record  *wipe.WipeRecord `json:"record"`
	Summary Summary          `json:"summary"`
}

// Summarize derives unit counts and byte totals from a sealed record.
func Summarize(rec *wipe.WipeRecord) Summary {
	s := Summary{
		TotalUnits: len(rec.Units),
		Duration:   rec.EndedAt.Sub(rec.StartedAt).String(),
	}
	for _, u := range rec.Units {
		switch u.Status {
		case wipe.UnitCompleted:
			s.Completed++
		case wipe.UnitPartialFailure:
			s.Partial++
		case wipe.UnitAborted:
			s.Aborted++
		}
		if u.Denied {
			s.Denied++
		}
		for _, p := range u.Passes {
			s.BytesWritten += p.BytesWritten
		}
	}
	return s
}

// Save writes the sealed record and its summary as a JSON file under dir
// and returns the written path.
func Save(rec *wipe.WipeRecord, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", cerr.Wrapf(err, "creating report directory %s", dir)
	}

	name := fmt.Sprintf("securewipe_record_%s.json", rec.StartedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(envelope{Record: rec, Summary: Summarize(rec)}, "", "  ")
	if err != nil {
		return "", cerr.Wrap(err, "serializing record")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", cerr.Wrapf(err, "writing report %s", path)
	}
	return path, nil
}

// PrintSummary writes a short human-readable digest to stdout. The JSON
// record stays the sole source of truth for what happened.
func PrintSummary(rec *wipe.WipeRecord) {
	s := Summarize(rec)
	fmt.Printf("record %s  target=%s method=%s outcome=%s\n", rec.ID, rec.Target, rec.Method, rec.Outcome)
	fmt.Printf("units: %d total, %d completed, %d partial, %d aborted (%d denied)\n",
		s.TotalUnits, s.Completed, s.Partial, s.Aborted, s.Denied)
	fmt.Printf("bytes written: %d  duration: %s\n", s.BytesWritten, s.Duration)
	fmt.Printf("integrity digest: %s\n", rec.IntegrityDigest)
}
