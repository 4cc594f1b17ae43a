package database

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Mikedan37/BlazeDB"
)

// Severity tags a ValidationIssue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// ValidationIssue is one finding from CheckIntegrity.
type ValidationIssue struct {
	Severity Severity
	Message  string
}

// ValidationReport is CheckIntegrity's result: zero or more issues found
// across the page-scan, layout-cross-check, and index-consistency passes.
type ValidationReport struct {
	Issues []ValidationIssue
}

// HasErrors reports whether any issue in the report is SeverityError.
func (r ValidationReport) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CheckIntegrity runs the page-scan, layout-cross-check, and
// index-consistency passes concurrently via errgroup, mirroring the
// teacher's use of golang.org/x/sync/errgroup to fan out independent I/O
// in its FS backend. In strict mode, any SeverityError issue causes
// CheckIntegrity to also return a non-nil error carrying IntegrityError.
func (db *Database) CheckIntegrity(strict bool) (ValidationReport, error) {
	if err := db.checkKey(); err != nil {
		return ValidationReport{}, err
	}

	var mu sync.Mutex
	var issues []ValidationIssue
	add := func(sev Severity, msg string) {
		mu.Lock()
		defer mu.Unlock()
		issues = append(issues, ValidationIssue{Severity: sev, Message: msg})
	}

	var g errgroup.Group

	g.Go(func() error {
		db.checkPageStats(add)
		return nil
	})
	g.Go(func() error {
		db.checkLayoutCrossRef(add)
		return nil
	})
	g.Go(func() error {
		db.checkIndexConsistency(add)
		return nil
	})

	if err := g.Wait(); err != nil {
		return ValidationReport{}, blazedb.NewError(blazedb.Unknown, err, nil)
	}

	report := ValidationReport{Issues: issues}
	if strict && report.HasErrors() {
		return report, blazedb.NewError(blazedb.IntegrityError, nil, report)
	}
	return report, nil
}

func (db *Database) checkPageStats(add func(Severity, string)) {
	stats, err := db.ps.Stats()
	if err != nil {
		add(SeverityError, "page store stats: "+err.Error())
		return
	}
	if stats.OrphanedPages > 0 {
		add(SeverityWarning, "orphaned pages present (header doesn't match magic+version)")
	}
}

func (db *Database) checkLayoutCrossRef(add func(Severity, string)) {
	lo := db.col.Layout()
	maxSeen := int64(-1)
	for id, pageIdx := range lo.IndexMap {
		doc, err := db.ps.Read(pageIdx)
		if err != nil {
			add(SeverityError, "unreadable page for id "+id.String())
			continue
		}
		if doc == nil {
			add(SeverityWarning, "indexMap references a hole page for id "+id.String())
		}
		if pageIdx > maxSeen {
			maxSeen = pageIdx
		}
	}
	if maxSeen >= lo.NextPageIndex {
		add(SeverityError, "nextPageIndex is not strictly greater than every indexMap entry")
	}
}

func (db *Database) checkIndexConsistency(add func(Severity, string)) {
	lo := db.col.Layout()
	for name, buckets := range lo.SecondaryIndexes {
		for _, ids := range buckets {
			for id := range ids {
				if _, ok := lo.IndexMap[id]; !ok {
					add(SeverityWarning, "dangling id in secondary index "+name)
				}
			}
		}
	}
}
