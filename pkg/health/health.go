// Package health holds the consistency check engine: the check abstraction,
// the finding snapshot model, the interactive decision loop and the session
// driver that runs registered checks in order.
package health

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/sbuerk/dbdoctor/pkg/storage"
)

var log = logging.Logger("health")

// Mode selects how a check deals with findings.
type Mode int

const (
	// ModeInteractive drives the operator decision loop per check.
	ModeInteractive Mode = iota
	// ModeExecute repairs findings without prompting.
	ModeExecute
)

func (m Mode) String() string {
	if m == ModeExecute {
		return "execute"
	}
	return "interactive"
}

// Result is the terminal status of one check run.
type Result int

const (
	// ResultOK means no inconsistency was found or all were resolved.
	ResultOK Result = iota
	// ResultAborted means the operator or policy halted before resolution.
	ResultAborted
)

func (r Result) String() string {
	if r == ResultAborted {
		return "aborted"
	}
	return "ok"
}

// Record is one inconsistent row captured at detection time. It is never
// mutated; the next detection pass supersedes it.
type Record struct {
	Table  string
	UID    int64
	PageID int64
	Fields storage.Row
}

// FindingSet is one full scan snapshot: per table, the offending records in
// primary-key order. Table order follows the catalog walk that produced it.
type FindingSet struct {
	tables  []string
	records map[string][]Record
}

func NewFindingSet() *FindingSet {
	return &FindingSet{records: map[string][]Record{}}
}

// Add appends a record. Records arrive from uid-ordered scans, so per-table
// order is primary-key order by construction.
func (f *FindingSet) Add(rec Record) {
	if _, seen := f.records[rec.Table]; !seen {
		f.tables = append(f.tables, rec.Table)
	}
	f.records[rec.Table] = append(f.records[rec.Table], rec)
}

// Empty reports whether the scan found nothing.
func (f *FindingSet) Empty() bool {
	return len(f.tables) == 0
}

// Tables lists the affected tables in scan order.
func (f *FindingSet) Tables() []string {
	return f.tables
}

// Records returns the findings for one table in primary-key order.
func (f *FindingSet) Records(table string) []Record {
	return f.records[table]
}

// UIDs returns the primary keys of one table's findings.
func (f *FindingSet) UIDs(table string) []int64 {
	recs := f.records[table]
	uids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		uids = append(uids, rec.UID)
	}
	return uids
}

// Len is the total record count across tables.
func (f *FindingSet) Len() int {
	n := 0
	for _, recs := range f.records {
		n += len(recs)
	}
	return n
}

// Outcome counts the repairs performed per table.
type Outcome struct {
	Deleted map[string]int64
	Updated map[string]int64
}

func NewOutcome() Outcome {
	return Outcome{Deleted: map[string]int64{}, Updated: map[string]int64{}}
}

func (o Outcome) Total() int64 {
	var n int64
	for _, c := range o.Deleted {
		n += c
	}
	for _, c := range o.Updated {
		n += c
	}
	return n
}

// Check is one inconsistency class. The set of implementations is closed and
// registered at composition time; every variant carries a fixed repair
// strategy that is not operator-selectable.
type Check interface {
	// Identifier is the stable slug used for resume markers.
	Identifier() string
	// Title is the human heading printed above the narrative.
	Title() string
	// Describe explains the inconsistency class and the repair offered.
	Describe() string
	// Detect scans for offending records. Field names must come from the
	// schema catalog plus the fixed structural columns, and soft-delete
	// filtering is not applied: the anomalies are structural, not a
	// visibility concern.
	Detect(ctx context.Context) (*FindingSet, error)
	// Repair performs the fixed corrective action against the given
	// snapshot. Repair is not atomic across tables; the re-verify scan
	// that follows accounts for partial completion.
	Repair(ctx context.Context, findings *FindingSet) (Outcome, error)
}
