// The run package drives one full profiling run: alignment jobs, hit
// mining, matrix construction, classification, rarefaction, artifacts and
// persistence.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/yumyai/panscope/logger"
	"github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/config"
	"github.com/yumyai/panscope/pkg/matrix"
	"github.com/yumyai/panscope/pkg/mine"
	"github.com/yumyai/panscope/pkg/refdb"
	"github.com/yumyai/panscope/pkg/report"
	"github.com/yumyai/panscope/pkg/store"
	"go.uber.org/zap"
)

// Pipeline is one configured run over a fixed set of genomes, databases and
// tools.
type Pipeline struct {
	Config    config.Config
	Genomes   []align.Genome
	Databases []*refdb.Database
	Tools     []align.Tool

	// Store is optional; when nil, results are only written as CSV.
	Store *store.Store
}

// Summary reports what a run produced, successes and failures both.
type Summary struct {
	RunID     string
	Result    *align.RunResult
	Artifacts []string
	Warnings  []string
}

// Execute runs the pipeline to completion. Job-level failures are isolated
// and reported through the failure log; the returned error is non-nil only
// for structural failures, including databases for which every job failed.
// Partial results are always written for whatever succeeded.
func (p *Pipeline) Execute(ctx context.Context) (*Summary, error) {

	if err := p.Config.Validate(); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString()}
	startedAt := time.Now()

	logger.Info("starting run",
		zap.String("run_id", summary.RunID),
		zap.Int("genomes", len(p.Genomes)),
		zap.Int("databases", len(p.Databases)))

	orch := align.NewOrchestrator(p.Config.Workers, p.Config.JobTimeout, p.Config.OutDir)
	result, err := orch.Run(ctx, p.Genomes, p.Databases, p.Tools)
	if err != nil {
		return nil, err
	}
	summary.Result = result

	// From here on the summary is returned even on error: the alignment work
	// is done and the caller still reports whatever resolved.
	if p.Store != nil {
		if err := p.Store.SaveRun(ctx, summary.RunID, startedAt, p.Config.MinIdentity, p.Config.MinCoverage); err != nil {
			return summary, err
		}
		if err := p.Store.SaveJobs(ctx, summary.RunID, orch.Manager().Jobs()); err != nil {
			return summary, err
		}
	}

	if len(result.FailureLog) > 0 {
		path := filepath.Join(p.Config.OutDir, "failed_jobs.csv")
		if err := report.SaveTo(path, func(w io.Writer) error {
			return report.WriteFailureLog(w, result.FailureLog)
		}); err != nil {
			return summary, err
		}
		summary.Artifacts = append(summary.Artifacts, path)
	}

	genomeIDs := make([]string, 0, len(p.Genomes))
	for _, g := range p.Genomes {
		genomeIDs = append(genomeIDs, g.ID)
	}

	// Group resolved jobs per (database, tool) pair.
	type pairKey struct{ db, tool string }
	resolved := make(map[pairKey][]*align.Job)
	for _, job := range append(append([]*align.Job(nil), result.Succeeded...), result.Failed...) {
		k := pairKey{db: job.Database.Name, tool: job.Tool}
		resolved[k] = append(resolved[k], job)
	}

	th := mine.Thresholds{
		MinIdentity: p.Config.MinIdentity,
		MinCoverage: p.Config.MinCoverage,
		MaxEValue:   p.Config.EValue,
	}
	multiTool := len(p.Tools) > 1

	var emptyDBs []error
	for _, tool := range p.Tools {
		for _, db := range p.Databases {
			jobs, ok := resolved[pairKey{db: db.Name, tool: tool.Name()}]
			if !ok {
				continue // tool does not serve this database kind
			}

			m, err := p.buildMatrix(db, tool.Name(), genomeIDs, jobs, th)
			if err != nil {
				return summary, err
			}

			suffix := ""
			if multiTool {
				suffix = "_" + tool.Name()
			}

			warnings, err := p.analyze(ctx, summary, m, db, suffix)
			if err != nil {
				if errors.Is(err, matrix.ErrEmptyAnalyzableSet) {
					msg := fmt.Sprintf("every %s job failed for database %s; no classification possible", tool.Name(), db.Name)
					logger.Error(msg)
					summary.Warnings = append(summary.Warnings, msg)
					emptyDBs = append(emptyDBs, fmt.Errorf("%s/%s: %w", db.Name, tool.Name(), err))
					continue
				}
				return summary, err
			}
			summary.Warnings = append(summary.Warnings, warnings...)
		}
	}

	logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("elapsed", time.Since(startedAt)))

	return summary, errors.Join(emptyDBs...)
}

// buildMatrix mines every succeeded job of one (database, tool) pair and
// assembles the sealed matrix. Failed jobs turn their genome column into
// not-analyzed cells.
func (p *Pipeline) buildMatrix(db *refdb.Database, tool string, genomeIDs []string, jobs []*align.Job, th mine.Thresholds) (*matrix.Matrix, error) {

	b := matrix.NewBuilder(db.Name, tool, genomeIDs, db.Genes())

	for _, job := range jobs {
		if job.Status == align.StatusFailed {
			if err := b.MarkNotAnalyzed(job.Genome.ID); err != nil {
				return nil, err
			}
			continue
		}

		hits, skipped, err := align.ParseFile(job.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("parse output of %s: %w", job.Key(), err)
		}
		if skipped > 0 {
			logger.Warn("skipped malformed alignment rows",
				zap.String("job", job.Key()),
				zap.Int("rows", skipped))
			b.CountMalformed(skipped)
		}

		best := mine.Mine(hits, th)
		if err := b.AddBestHits(job.Genome.ID, best, db.ResolveSubject); err != nil {
			return nil, err
		}
	}

	return b.Seal(), nil
}

// analyze writes the per-database artifacts and persists results. The
// classifier and the estimator only read the sealed matrix.
func (p *Pipeline) analyze(ctx context.Context, summary *Summary, m *matrix.Matrix, db *refdb.Database, suffix string) ([]string, error) {

	var warnings []string
	save := func(name string, render func(io.Writer) error) error {
		path := filepath.Join(p.Config.OutDir, name)
		if err := report.SaveTo(path, render); err != nil {
			return err
		}
		summary.Artifacts = append(summary.Artifacts, path)
		return nil
	}

	// The raw matrix is written even when every cell is not-analyzed; the
	// classifier refuses such a matrix and the caller downgrades that to a
	// warning.
	if err := save(fmt.Sprintf("matrix_%s%s.csv", db.Name, suffix), func(w io.Writer) error {
		return report.WriteMatrix(w, m)
	}); err != nil {
		return nil, err
	}

	classes, err := matrix.Classify(m)
	if err != nil {
		return nil, err
	}

	points, err := matrix.Estimator{Trials: p.Config.Trials, Seed: p.Config.Seed}.Curve(m)
	if err != nil {
		return nil, err
	}
	if err := save(fmt.Sprintf("%s_gene_count%s.csv", db.Name, suffix), func(w io.Writer) error {
		return report.WriteGeneCount(w, m, classes)
	}); err != nil {
		return nil, err
	}
	if err := save(fmt.Sprintf("%s_strain_count%s.csv", db.Name, suffix), func(w io.Writer) error {
		return report.WriteStrainCount(w, m)
	}); err != nil {
		return nil, err
	}
	if err := save(fmt.Sprintf("%s_pan%s.csv", db.Name, suffix), func(w io.Writer) error {
		return report.WritePanCurve(w, points)
	}); err != nil {
		return nil, err
	}

	if classNames := db.Classes(); len(classNames) > 0 {
		if err := save(fmt.Sprintf("%s_drug_classes%s.csv", db.Name, suffix), func(w io.Writer) error {
			return report.WriteCategoryRollup(w, "Drug Class", classNames, classes, db.ClassOf)
		}); err != nil {
			return nil, err
		}
	}
	if mechs := db.Mechanisms(); len(mechs) > 0 {
		if err := save(fmt.Sprintf("%s_mechanisms%s.csv", db.Name, suffix), func(w io.Writer) error {
			return report.WriteCategoryRollup(w, "Mechanism", mechs, classes, db.MechanismOf)
		}); err != nil {
			return nil, err
		}
	}

	if m.MalformedRows() > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%s%s: %d malformed alignment rows skipped", db.Name, suffix, m.MalformedRows()))
	}

	if p.Store != nil {
		if err := p.Store.SaveMatrix(ctx, summary.RunID, m); err != nil {
			return nil, err
		}
		if err := p.Store.SaveClassifications(ctx, summary.RunID, m, classes); err != nil {
			return nil, err
		}
		if err := p.Store.SaveCurve(ctx, summary.RunID, m.Database(), m.Tool(), points); err != nil {
			return nil, err
		}
	}

	return warnings, nil
}
