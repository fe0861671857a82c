package align

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yumyai/panscope/internal/util"
	"github.com/yumyai/panscope/logger"
	"github.com/yumyai/panscope/pkg/refdb"
	"go.uber.org/zap"
)

// Orchestrator enumerates (genome, database, tool) jobs and executes them
// under a bounded worker pool. Jobs are independent: each reads only the
// immutable query file and reference index and writes a job-private output.
type Orchestrator struct {
	Workers int
	Timeout time.Duration // per job; zero disables the limit
	OutDir  string

	manager *Manager
}

// SkippedJob is a combination that was never dispatched because the tool
// cannot serve the database kind. Not a failure.
type SkippedJob struct {
	GenomeID string
	Database string
	Tool     string
	Reason   string
}

// RunResult separates succeeded from failed work so downstream consumers can
// distinguish "gene absent" from "genome not analyzed".
type RunResult struct {
	Succeeded  []*Job
	Failed     []*Job
	Skipped    []SkippedJob
	FailureLog []FailureRecord
}

func NewOrchestrator(workers int, timeout time.Duration, outDir string) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		Workers: workers,
		Timeout: timeout,
		OutDir:  outDir,
		manager: NewManager(),
	}
}

// Manager exposes the job states for persistence after the run.
func (o *Orchestrator) Manager() *Manager {
	return o.manager
}

// Run executes every dispatchable (genome, database, tool) combination to a
// terminal state. Individual job failures never abort the run; only
// structural problems (nothing to align against) return an error. When ctx
// is cancelled, dispatch stops and pending or in-flight jobs end up Failed
// with reason cancelled; already-succeeded jobs are retained.
func (o *Orchestrator) Run(ctx context.Context, genomes []Genome, dbs []*refdb.Database, tools []Tool) (*RunResult, error) {

	if len(genomes) == 0 {
		return nil, errors.New("no genomes supplied")
	}
	if len(dbs) == 0 {
		return nil, errors.New("no reference databases selected")
	}
	if len(tools) == 0 {
		return nil, errors.New("no alignment tool selected")
	}

	tabularDir := filepath.Join(o.OutDir, "tabular")
	if err := util.EnsureDir(tabularDir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var skipped []SkippedJob
	type unit struct {
		job  *Job
		tool Tool
	}
	var units []unit

	for _, tool := range tools {
		for _, db := range dbs {
			if !tool.Supports(db) {
				for _, g := range genomes {
					skipped = append(skipped, SkippedJob{
						GenomeID: g.ID,
						Database: db.Name,
						Tool:     tool.Name(),
						Reason:   fmt.Sprintf("%s cannot align against a %s database", tool.Name(), db.Kind),
					})
				}
				logger.Warn("skipping incompatible database for tool",
					zap.String("tool", tool.Name()),
					zap.String("database", db.Name))
				continue
			}
			for _, g := range genomes {
				out := filepath.Join(tabularDir, fmt.Sprintf("%s__%s__%s.tab", db.Name, tool.Name(), g.ID))
				units = append(units, unit{job: o.manager.NewJob(g, db, tool.Name(), out), tool: tool})
			}
		}
	}

	logger.Info("dispatching alignment jobs",
		zap.Int("jobs", len(units)),
		zap.Int("skipped", len(skipped)),
		zap.Int("workers", o.Workers))

	work := make(chan unit)

	var wg sync.WaitGroup
	wg.Add(o.Workers)
	for w := 0; w < o.Workers; w++ {
		go func() {
			defer wg.Done()
			for u := range work {
				o.execute(ctx, u.tool, u.job)
			}
		}()
	}

feed:
	for _, u := range units {
		select {
		case <-ctx.Done():
			break feed
		case work <- u:
		}
	}
	close(work)
	wg.Wait()

	// Whatever never reached a worker is cancelled, not silently dropped.
	for _, u := range units {
		if u.job.Status == StatusPending {
			o.manager.Fail(u.job.ID, ReasonCancelled, "run cancelled before dispatch")
		}
	}

	result := &RunResult{
		Succeeded:  o.manager.Succeeded(),
		Failed:     o.manager.Failed(),
		Skipped:    skipped,
		FailureLog: o.manager.FailureLog(),
	}

	logger.Info("alignment jobs resolved",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, tool Tool, job *Job) {

	o.manager.SetRunning(job.ID)

	jobCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	err := tool.Align(jobCtx, job.Genome.ProteinFile, job.Database, job.OutputPath)
	if err == nil {
		o.manager.Succeed(job.ID, job.OutputPath)
		logger.Debug("job succeeded", zap.String("job", job.Key()))
		return
	}

	reason, diagnostic := ReasonToolError, err.Error()
	var terr *ToolError
	if errors.As(err, &terr) {
		reason, diagnostic = terr.Reason, terr.Diagnostic
	}

	// Abandoned jobs must not leave a half-written artifact behind.
	if reason == ReasonCancelled {
		_ = os.Remove(job.OutputPath)
	}

	o.manager.Fail(job.ID, reason, diagnostic)
	logger.Warn("job failed",
		zap.String("job", job.Key()),
		zap.String("reason", reason))
}
