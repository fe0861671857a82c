// Persistence of run results into a sqlite file so downstream tools can
// query a run without re-parsing CSV artifacts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/matrix"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	min_identity REAL NOT NULL,
	min_coverage REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	job_id     TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	genome_id  TEXT NOT NULL,
	db_name    TEXT NOT NULL,
	tool       TEXT NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT,
	diagnostic TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS matrix_cells (
	run_id    TEXT NOT NULL,
	db_name   TEXT NOT NULL,
	tool      TEXT NOT NULL,
	gene_id   TEXT NOT NULL,
	genome_id TEXT NOT NULL,
	state     TEXT NOT NULL,
	identity  REAL NOT NULL,
	PRIMARY KEY (run_id, db_name, tool, gene_id, genome_id)
);

CREATE TABLE IF NOT EXISTS gene_classes (
	run_id     TEXT NOT NULL,
	db_name    TEXT NOT NULL,
	tool       TEXT NOT NULL,
	gene_id    TEXT NOT NULL,
	class      TEXT NOT NULL,
	analyzable INTEGER NOT NULL,
	present    INTEGER NOT NULL,
	PRIMARY KEY (run_id, db_name, tool, gene_id)
);

CREATE TABLE IF NOT EXISTS rarefaction_points (
	run_id    TEXT NOT NULL,
	db_name   TEXT NOT NULL,
	tool      TEXT NOT NULL,
	k         INTEGER NOT NULL,
	pan_mean  REAL NOT NULL,
	pan_var   REAL NOT NULL,
	core_mean REAL NOT NULL,
	core_var  REAL NOT NULL,
	PRIMARY KEY (run_id, db_name, tool, k)
);
`

const timeLayout = "2006-01-02T15:04:05Z"

type Store struct {
	db *sql.DB
}

// Open creates or opens the result database and makes sure the schema is in
// place.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init result store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun registers the run itself.
func (s *Store) SaveRun(ctx context.Context, runID string, createdAt time.Time, minIdentity, minCoverage float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, min_identity, min_coverage) VALUES (?, ?, ?, ?)`,
		runID, createdAt.UTC().Format(timeLayout), minIdentity, minCoverage)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveJobs persists the terminal state of every job, failed ones included so
// the failure log survives the run.
func (s *Store) SaveJobs(ctx context.Context, runID string, jobs []*align.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	defer tx.Rollback()

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (job_id, run_id, genome_id, db_name, tool, status, reason, diagnostic, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	defer stm.Close()

	for _, job := range jobs {
		_, err := stm.ExecContext(ctx,
			job.ID, runID, job.Genome.ID, job.Database.Name, job.Tool,
			string(job.Status), job.Reason, job.Diagnostic,
			job.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("save job %s: %w", job.Key(), err)
		}
	}

	return tx.Commit()
}

func stateLabel(state matrix.CellState) string {
	switch state {
	case matrix.Present:
		return "present"
	case matrix.NotAnalyzed:
		return "not_analyzed"
	default:
		return "absent"
	}
}

// SaveMatrix persists every cell of a sealed matrix.
func (s *Store) SaveMatrix(ctx context.Context, runID string, m *matrix.Matrix) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save matrix: %w", err)
	}
	defer tx.Rollback()

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO matrix_cells (run_id, db_name, tool, gene_id, genome_id, state, identity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save matrix: %w", err)
	}
	defer stm.Close()

	for _, gene := range m.Genes() {
		for _, genome := range m.Genomes() {
			cell, _ := m.Cell(gene, genome)
			_, err := stm.ExecContext(ctx,
				runID, m.Database(), m.Tool(), gene, genome,
				stateLabel(cell.State), cell.Identity)
			if err != nil {
				return fmt.Errorf("save cell (%s, %s): %w", gene, genome, err)
			}
		}
	}

	return tx.Commit()
}

// SaveClassifications persists the per-gene labels with their n/p values.
func (s *Store) SaveClassifications(ctx context.Context, runID string, m *matrix.Matrix, classes []matrix.GeneClassification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save classifications: %w", err)
	}
	defer tx.Rollback()

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO gene_classes (run_id, db_name, tool, gene_id, class, analyzable, present)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save classifications: %w", err)
	}
	defer stm.Close()

	for _, c := range classes {
		_, err := stm.ExecContext(ctx,
			runID, m.Database(), m.Tool(), c.Gene, string(c.Class), c.Analyzable, c.Present)
		if err != nil {
			return fmt.Errorf("save classification %s: %w", c.Gene, err)
		}
	}

	return tx.Commit()
}

// SaveCurve persists the rarefaction points of one (database, tool) pair.
func (s *Store) SaveCurve(ctx context.Context, runID, database, tool string, points []matrix.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save rarefaction curve: %w", err)
	}
	defer tx.Rollback()

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO rarefaction_points (run_id, db_name, tool, k, pan_mean, pan_var, core_mean, core_var)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save rarefaction curve: %w", err)
	}
	defer stm.Close()

	for _, p := range points {
		_, err := stm.ExecContext(ctx,
			runID, database, tool, p.K, p.PanMean, p.PanVar, p.CoreMean, p.CoreVar)
		if err != nil {
			return fmt.Errorf("save rarefaction point k=%d: %w", p.K, err)
		}
	}

	return tx.Commit()
}

// JobStatus is one persisted job row.
type JobStatus struct {
	JobID    string
	GenomeID string
	Database string
	Tool     string
	Status   string
	Reason   string
}

// RunJobs loads the persisted jobs of a run, in no particular order.
func (s *Store) RunJobs(ctx context.Context, runID string) ([]JobStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, genome_id, db_name, tool, status, COALESCE(reason, '')
		 FROM jobs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run jobs: %w", err)
	}
	defer rows.Close()

	var out []JobStatus
	for rows.Next() {
		var j JobStatus
		if err := rows.Scan(&j.JobID, &j.GenomeID, &j.Database, &j.Tool, &j.Status, &j.Reason); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GeneClass loads one persisted classification.
func (s *Store) GeneClass(ctx context.Context, runID, database, tool, gene string) (matrix.GeneClassification, error) {
	var c matrix.GeneClassification
	var class string
	err := s.db.QueryRowContext(ctx,
		`SELECT gene_id, class, analyzable, present FROM gene_classes
		 WHERE run_id = ? AND db_name = ? AND tool = ? AND gene_id = ?`,
		runID, database, tool, gene).Scan(&c.Gene, &class, &c.Analyzable, &c.Present)
	if err != nil {
		return c, fmt.Errorf("load gene class: %w", err)
	}
	c.Class = matrix.Class(class)
	return c, nil
}
