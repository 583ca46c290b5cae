package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/patentindex/core"
)

// RecordRun appends a build report to the run log.
func (s *Store) RecordRun(ctx context.Context, report *core.BuildReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO build_runs (run_id, generation, records, documents, duplicates, malformed, elapsed_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, int64(report.Generation), report.Records, report.Documents, report.Duplicates,
		report.Malformed, report.Elapsed.Milliseconds(), finished.UnixNano())
	if err != nil {
		return fmt.Errorf("recording run %s: %w", report.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit build reports, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*core.BuildReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, generation, records, documents, duplicates, malformed, elapsed_ms, finished_at
		FROM build_runs
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	reports := []*core.BuildReport{}
	for rows.Next() {
		var (
			r          core.BuildReport
			generation int64
			elapsedMs  int64
			finishedNs int64
		)
		err := rows.Scan(&r.RunID, &generation, &r.Records, &r.Documents, &r.Duplicates,
			&r.Malformed, &elapsedMs, &finishedNs)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Generation = uint64(generation)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		r.FinishedAt = time.Unix(0, finishedNs).UTC()
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}
