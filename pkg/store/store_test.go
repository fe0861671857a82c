package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/matrix"
	"github.com/yumyai/panscope/pkg/mine"
	"github.com/yumyai/panscope/pkg/refdb"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "panscope.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	b := matrix.NewBuilder("card", "diamond", []string{"g1", "g2"}, []string{"geneX"})
	hit := mine.BestHit{RawHit: align.RawHit{QueryID: "q1", SubjectID: "geneX", Identity: 98.5, Length: 100, QueryLen: 100, Bitscore: 200}}
	require.NoError(t, b.AddBestHits("g1", []mine.BestHit{hit}, func(s string) (string, bool) { return s, true }))
	require.NoError(t, b.MarkNotAnalyzed("g2"))
	return b.Seal()
}

func TestSaveAndLoadJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, "run-1", time.Now(), 70, 70))

	db := refdb.New("card", refdb.Protein)
	jobs := []*align.Job{
		{
			ID:        "job-a",
			Genome:    align.Genome{ID: "g1"},
			Database:  db,
			Tool:      "diamond",
			Status:    align.StatusSucceeded,
			UpdatedAt: time.Now(),
		},
		{
			ID:         "job-b",
			Genome:     align.Genome{ID: "g2"},
			Database:   db,
			Tool:       "diamond",
			Status:     align.StatusFailed,
			Reason:     align.ReasonTimeout,
			Diagnostic: "killed after 30m",
			UpdatedAt:  time.Now(),
		},
	}
	require.NoError(t, s.SaveJobs(ctx, "run-1", jobs))

	loaded, err := s.RunJobs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byID := map[string]JobStatus{}
	for _, j := range loaded {
		byID[j.JobID] = j
	}
	assert.Equal(t, "succeeded", byID["job-a"].Status)
	assert.Equal(t, "failed", byID["job-b"].Status)
	assert.Equal(t, "timeout", byID["job-b"].Reason)
}

func TestSaveMatrixAndClassifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := testMatrix(t)
	require.NoError(t, s.SaveRun(ctx, "run-2", time.Now(), 70, 70))
	require.NoError(t, s.SaveMatrix(ctx, "run-2", m))

	classes, err := matrix.Classify(m)
	require.NoError(t, err)
	require.NoError(t, s.SaveClassifications(ctx, "run-2", m, classes))

	got, err := s.GeneClass(ctx, "run-2", "card", "diamond", "geneX")
	require.NoError(t, err)
	assert.Equal(t, matrix.ClassCore, got.Class)
	assert.Equal(t, 1, got.Analyzable)
	assert.Equal(t, 1, got.Present)
}

func TestSaveCurve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, "run-3", time.Now(), 70, 70))

	points := []matrix.Point{
		{K: 1, PanMean: 2, PanVar: 0.25, CoreMean: 2, CoreVar: 0.25},
		{K: 2, PanMean: 3, CoreMean: 1},
	}
	require.NoError(t, s.SaveCurve(ctx, "run-3", "card", "diamond", points))

	// Saving the same curve twice violates the primary key.
	assert.Error(t, s.SaveCurve(ctx, "run-3", "card", "diamond", points))
}
