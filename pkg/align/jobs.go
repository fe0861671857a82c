package align

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yumyai/panscope/pkg/refdb"
)

// Status represents the lifecycle of one alignment job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Failure reasons recorded on a failed job.
const (
	ReasonTimeout   = "timeout"
	ReasonToolError = "tool_error"
	ReasonCancelled = "cancelled"
)

// Job is one (genome, database, tool) unit of work. On success it owns
// exactly one raw tabular output artifact at OutputPath.
type Job struct {
	ID         string
	Genome     Genome
	Database   *refdb.Database
	Tool       string
	Status     Status
	OutputPath string
	Reason     string
	Diagnostic string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (j *Job) Key() string {
	return fmt.Sprintf("%s/%s/%s", j.Genome.ID, j.Database.Name, j.Tool)
}

// FailureRecord is one entry of the append-only failure log.
type FailureRecord struct {
	JobID      string
	GenomeID   string
	Database   string
	Tool       string
	Reason     string
	Diagnostic string
	At         time.Time
}

// Manager stores job states indexed by job ID. It is the only writer of job
// lifecycle; workers go through it.
type Manager struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
	}
}

// NewJob registers a pending job for the triple.
func (m *Manager) NewJob(genome Genome, db *refdb.Database, tool string, outputPath string) *Job {
	job := &Job{
		ID:         uuid.NewString(),
		Genome:     genome,
		Database:   db,
		Tool:       tool,
		Status:     StatusPending,
		OutputPath: outputPath,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.mu.Unlock()
	return job
}

func (m *Manager) SetRunning(jobID string) {
	m.updateJob(jobID, func(job *Job) {
		job.Status = StatusRunning
	})
}

// Succeed marks the job done with its raw-output artifact.
func (m *Manager) Succeed(jobID string, outputPath string) {
	m.updateJob(jobID, func(job *Job) {
		job.Status = StatusSucceeded
		job.OutputPath = outputPath
	})
}

// Fail records the failure reason and retains the captured diagnostic output.
func (m *Manager) Fail(jobID string, reason, diagnostic string) {
	m.updateJob(jobID, func(job *Job) {
		job.Status = StatusFailed
		job.Reason = reason
		job.Diagnostic = diagnostic
	})
}

func (m *Manager) GetJob(jobID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

// Jobs returns all jobs in creation order.
func (m *Manager) Jobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id])
	}
	return out
}

func (m *Manager) Succeeded() []*Job {
	return m.filter(StatusSucceeded)
}

func (m *Manager) Failed() []*Job {
	return m.filter(StatusFailed)
}

func (m *Manager) filter(status Status) []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Job
	for _, id := range m.order {
		if m.jobs[id].Status == status {
			out = append(out, m.jobs[id])
		}
	}
	return out
}

// FailureLog lists every failed job as an append-only record set, in job
// creation order.
func (m *Manager) FailureLog() []FailureRecord {
	failed := m.Failed()
	log := make([]FailureRecord, 0, len(failed))
	for _, job := range failed {
		log = append(log, FailureRecord{
			JobID:      job.ID,
			GenomeID:   job.Genome.ID,
			Database:   job.Database.Name,
			Tool:       job.Tool,
			Reason:     job.Reason,
			Diagnostic: job.Diagnostic,
			At:         job.UpdatedAt,
		})
	}
	return log
}

func (m *Manager) updateJob(jobID string, update func(job *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return
	}

	update(job)
	job.UpdatedAt = time.Now()
}
