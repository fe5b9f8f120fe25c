package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/engram/engram/internal/decay"
	"github.com/engram/engram/internal/store"
)

// Engine runs the full reconciliation pipeline: export memory, collect
// the corpus, classify through the oracle, write the report artifact,
// and apply the verdict transactionally. An oracle failure aborts the
// run before any mutation.
type Engine struct {
	db         *store.DB
	oracle     Oracle
	collector  CollectorConfig
	reportDir  string
	maxRetries int
}

// Summary is the operator-facing result of one run.
type Summary struct {
	Recovered  int
	Gaps       int
	Stale      int
	ReportPath string
	Oracle     string // the oracle's own one-line summary
}

// NewEngine wires a reconciliation engine. maxRetries bounds additional
// oracle attempts after the first; negative means the default of 3.
func NewEngine(db *store.DB, oracle Oracle, collector CollectorConfig, reportDir string, maxRetries int) *Engine {
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &Engine{
		db:         db,
		oracle:     oracle,
		collector:  collector,
		reportDir:  reportDir,
		maxRetries: maxRetries,
	}
}

// Run executes one reconciliation. The complete report is assembled
// before the apply step, and the apply itself is a single transaction,
// so an interruption at any point leaves the store untouched.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	now := time.Now()

	memExport, err := e.db.ExportText(now)
	if err != nil {
		return nil, fmt.Errorf("export memory: %w", err)
	}
	corpus, err := Collect(e.collector)
	if err != nil {
		return nil, fmt.Errorf("collect corpus: %w", err)
	}

	verdict, err := e.classify(ctx, memExport, corpus)
	if err != nil {
		return nil, err
	}

	report, adds, flags, err := e.buildReport(verdict, now)
	if err != nil {
		return nil, err
	}

	// The artifact lands before the apply: if the apply crashes or
	// fails, the run's verdict is still on disk with Applied false.
	var path string
	if e.reportDir != "" {
		path, err = WriteArtifact(e.reportDir, report)
		if err != nil {
			return nil, err
		}
	}

	if err := e.db.ApplyReconciliation(adds, flags, now); err != nil {
		return nil, fmt.Errorf("apply reconciliation: %w", err)
	}
	report.Applied = true
	if path != "" {
		if err := markApplied(path, report); err != nil {
			return nil, err
		}
	}

	recovered, gaps, stale := report.Counts()
	return &Summary{
		Recovered:  recovered,
		Gaps:       gaps,
		Stale:      stale,
		ReportPath: path,
		Oracle:     verdict.Summary,
	}, nil
}

// classify calls the oracle with bounded exponential-backoff retry.
func (e *Engine) classify(ctx context.Context, memExport, corpus string) (*Classification, error) {
	var verdict *Classification
	op := func() error {
		c, err := e.oracle.Classify(ctx, memExport, corpus)
		if err != nil {
			return err
		}
		verdict = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.maxRetries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		var oerr *OracleError
		if !errors.As(err, &oerr) {
			err = &OracleError{Err: err}
		}
		return nil, err
	}
	return verdict, nil
}

// buildReport turns the oracle verdict into an ordered report plus the
// store mutations it implies. Recovered items become new records;
// stale titles are resolved to record ids; gaps are report-only.
func (e *Engine) buildReport(verdict *Classification, now time.Time) (*Report, []store.AddParams, []store.StaleFlag, error) {
	report := &Report{RunAt: now, Summary: verdict.Summary}

	var adds []store.AddParams
	for _, m := range verdict.Recovered {
		sig := m.Significance
		if sig < 1 || sig > 10 {
			sig = 5 // conservative baseline when the oracle is vague
		}
		report.Findings = append(report.Findings, Finding{
			Class:        ClassRecovered,
			Title:        m.Title,
			Body:         m.Body,
			Significance: sig,
			Tags:         m.Tags,
			Evidence:     m.Evidence,
		})
		adds = append(adds, store.AddParams{
			Category:     decay.Recovered,
			Significance: sig,
			Title:        m.Title,
			Body:         m.Body,
			Tags:         m.Tags,
			Source:       "reconciliation",
		})
	}

	for _, m := range verdict.Gaps {
		report.Findings = append(report.Findings, Finding{
			Class:        ClassGap,
			Title:        m.Title,
			Body:         m.Body,
			Significance: m.Significance,
			Tags:         m.Tags,
			Evidence:     m.Evidence,
		})
	}

	records, err := e.db.All(now)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve stale titles: %w", err)
	}
	byTitle := make(map[string]string, len(records))
	for _, r := range records {
		byTitle[strings.ToLower(r.Title)] = r.ID
	}

	var flags []store.StaleFlag
	for _, s := range verdict.Stale {
		id := byTitle[strings.ToLower(s.MemoryTitle)]
		report.Findings = append(report.Findings, Finding{
			Class:    ClassStale,
			RecordID: id,
			Title:    s.MemoryTitle,
			Reason:   s.Reason,
		})
		if id != "" {
			flags = append(flags, store.StaleFlag{ID: id, Reason: s.Reason})
		}
	}

	return report, adds, flags, nil
}
