package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	myalign "github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/matrix"
	"github.com/yumyai/panscope/pkg/mine"
)

func asGene(subject string) (string, bool) { return subject, true }

func bestHit(query, subject string, identity float64) mine.BestHit {
	return mine.BestHit{RawHit: myalign.RawHit{
		QueryID:   query,
		SubjectID: subject,
		Identity:  identity,
		Length:    100,
		QueryLen:  100,
		Bitscore:  200,
	}}
}

func fixtureMatrix(t *testing.T) *matrix.Matrix {
	t.Helper()
	b := matrix.NewBuilder("card", "diamond", []string{"g1", "g2", "g3"}, []string{"geneX", "geneY"})
	require.NoError(t, b.AddBestHits("g1", []mine.BestHit{bestHit("q1", "geneX", 100), bestHit("q2", "geneY", 71.5)}, asGene))
	require.NoError(t, b.MarkNotAnalyzed("g2"))
	require.NoError(t, b.AddBestHits("g3", []mine.BestHit{bestHit("q3", "geneX", 92)}, asGene))
	return b.Seal()
}

func TestWriteMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, fixtureMatrix(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Strains;geneX;geneY", lines[0])
	assert.Equal(t, "g1;100;71.5", lines[1])
	assert.Equal(t, "g2;NA;NA", lines[2], "failed genome renders NA, not 0")
	assert.Equal(t, "g3;92;0", lines[3])
}

func TestWriteMatrixByteIdentical(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteMatrix(&a, fixtureMatrix(t)))
	require.NoError(t, WriteMatrix(&b, fixtureMatrix(t)))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteGeneCount(t *testing.T) {
	m := fixtureMatrix(t)
	classes, err := matrix.Classify(m)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeneCount(&buf, m, classes))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Genes;Presence Number;Strains;Class;Analyzable;Present", lines[0])
	assert.Equal(t, "geneX;2;g1,g3;Core;2;2", lines[1])
	assert.Equal(t, "geneY;1;g1;Exclusive;2;1", lines[2])
}

func TestWriteGeneCountExcludesAbsent(t *testing.T) {
	b := matrix.NewBuilder("card", "diamond", []string{"g1", "g2"}, []string{"geneX", "geneZ"})
	require.NoError(t, b.AddBestHits("g1", []mine.BestHit{bestHit("q1", "geneX", 100)}, asGene))
	require.NoError(t, b.AddBestHits("g2", []mine.BestHit{bestHit("q1", "geneX", 95)}, asGene))
	m := b.Seal()

	classes, err := matrix.Classify(m)
	require.NoError(t, err)
	require.Len(t, classes, 2, "classification still covers the whole reference set")

	var buf bytes.Buffer
	require.NoError(t, WriteGeneCount(&buf, m, classes))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "geneX;2;g1,g2;Core;2;2", lines[1])
	assert.NotContains(t, buf.String(), "geneZ")
}

func TestWriteStrainCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStrainCount(&buf, fixtureMatrix(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "g1;2;geneX,geneY", lines[1])
	assert.Equal(t, "g2;0;", lines[2])
	assert.Equal(t, "g3;1;geneX", lines[3])
}

func TestWritePanCurve(t *testing.T) {
	points := []matrix.Point{
		{K: 1, PanMean: 2, PanVar: 0.5, CoreMean: 2, CoreVar: 0.5},
		{K: 2, PanMean: 3, PanVar: 0, CoreMean: 1, CoreVar: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePanCurve(&buf, points))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Number of Genomes;Pan Mean;Pan Variance;Core Mean;Core Variance", lines[0])
	assert.Equal(t, "1;2.0000;0.5000;2.0000;0.5000", lines[1])
}

func TestWriteFailureLog(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	records := []myalign.FailureRecord{
		{JobID: "abc", GenomeID: "g2", Database: "card", Tool: "diamond", Reason: "timeout", Diagnostic: "killed after 30m", At: at},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFailureLog(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "abc;g2;card;diamond;timeout;killed after 30m;2025-03-14T09:26:53Z", lines[1])
}

func TestWriteCategoryRollup(t *testing.T) {
	classes := []matrix.GeneClassification{
		{Gene: "geneX", Class: matrix.ClassCore},
		{Gene: "geneY", Class: matrix.ClassExclusive},
		{Gene: "geneZ", Class: matrix.ClassAbsent},
	}
	categoryOf := func(gene string) (string, bool) {
		switch gene {
		case "geneX", "geneY":
			return "Aminoglycosides", true
		case "geneZ":
			return "Elfamycins", true
		}
		return "", false
	}

	var buf bytes.Buffer
	err := WriteCategoryRollup(&buf, "Drug Class", []string{"Aminoglycosides", "Elfamycins"}, classes, categoryOf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "all-zero categories are omitted")
	assert.Equal(t, "Drug Class;Core;Accessory;Exclusive", lines[0])
	assert.Equal(t, "Aminoglycosides;1;0;1", lines[1])
}
