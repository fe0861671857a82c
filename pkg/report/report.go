// CSV artifacts consumed by downstream plotting and reporting. All files are
// semicolon-separated, with strains as matrix rows.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/matrix"
)

// NotAnalyzedSentinel marks cells whose owning job failed, as opposed to a
// measured absence which is written as 0.
const NotAnalyzedSentinel = "NA"

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

func formatIdentity(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteMatrix renders the presence/identity matrix, one row per strain, one
// column per gene.
func WriteMatrix(w io.Writer, m *matrix.Matrix) error {
	cw := newWriter(w)

	genes := m.Genes()
	header := append([]string{"Strains"}, genes...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, genome := range m.Genomes() {
		row := make([]string, 0, len(genes)+1)
		row = append(row, genome)
		for _, gene := range genes {
			cell, _ := m.Cell(gene, genome)
			switch cell.State {
			case matrix.NotAnalyzed:
				row = append(row, NotAnalyzedSentinel)
			case matrix.Present:
				row = append(row, formatIdentity(cell.Identity))
			default:
				row = append(row, "0")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteGeneCount renders per-gene presence counts with the classification
// label and the n/p values it was derived from.
func WriteGeneCount(w io.Writer, m *matrix.Matrix, classes []matrix.GeneClassification) error {
	cw := newWriter(w)

	if err := cw.Write([]string{"Genes", "Presence Number", "Strains", "Class", "Analyzable", "Present"}); err != nil {
		return err
	}

	for _, c := range classes {
		// Absent genes stay out of the artifact; the full partition lives in
		// the result store. A reference set has thousands of genes no genome
		// carries.
		if c.Class == matrix.ClassAbsent {
			continue
		}
		var carriers []string
		for _, genome := range m.Genomes() {
			cell, _ := m.Cell(c.Gene, genome)
			if cell.State == matrix.Present {
				carriers = append(carriers, genome)
			}
		}
		row := []string{
			c.Gene,
			strconv.Itoa(c.Present),
			strings.Join(carriers, ","),
			string(c.Class),
			strconv.Itoa(c.Analyzable),
			strconv.Itoa(c.Present),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteStrainCount renders per-strain presence counts with the gene list.
func WriteStrainCount(w io.Writer, m *matrix.Matrix) error {
	cw := newWriter(w)

	if err := cw.Write([]string{"Strains", "Presence Number", "Genes"}); err != nil {
		return err
	}

	genes := m.Genes()
	for _, genome := range m.Genomes() {
		var present []string
		for _, gene := range genes {
			cell, _ := m.Cell(gene, genome)
			if cell.State == matrix.Present {
				present = append(present, gene)
			}
		}
		row := []string{genome, strconv.Itoa(len(present)), strings.Join(present, ",")}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePanCurve renders the rarefaction curve, one row per accumulated
// genome count.
func WritePanCurve(w io.Writer, points []matrix.Point) error {
	cw := newWriter(w)

	if err := cw.Write([]string{"Number of Genomes", "Pan Mean", "Pan Variance", "Core Mean", "Core Variance"}); err != nil {
		return err
	}

	for _, p := range points {
		row := []string{
			strconv.Itoa(p.K),
			strconv.FormatFloat(p.PanMean, 'f', 4, 64),
			strconv.FormatFloat(p.PanVar, 'f', 4, 64),
			strconv.FormatFloat(p.CoreMean, 'f', 4, 64),
			strconv.FormatFloat(p.CoreVar, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFailureLog renders the append-only failure log of a run.
func WriteFailureLog(w io.Writer, records []align.FailureRecord) error {
	cw := newWriter(w)

	if err := cw.Write([]string{"Job", "Genome", "Database", "Tool", "Reason", "Diagnostic", "Timestamp"}); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.JobID,
			r.GenomeID,
			r.Database,
			r.Tool,
			r.Reason,
			r.Diagnostic,
			r.At.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCategoryRollup counts Core/Accessory/Exclusive genes per metadata
// category (drug class, mechanism). Categories with no classified gene are
// omitted, matching the upstream convention.
func WriteCategoryRollup(w io.Writer, label string, categories []string, classes []matrix.GeneClassification, categoryOf func(gene string) (string, bool)) error {
	cw := newWriter(w)

	if err := cw.Write([]string{label, "Core", "Accessory", "Exclusive"}); err != nil {
		return err
	}

	type tally struct{ core, accessory, exclusive int }
	byCategory := make(map[string]*tally, len(categories))
	for _, c := range categories {
		byCategory[c] = &tally{}
	}

	for _, c := range classes {
		cat, ok := categoryOf(c.Gene)
		if !ok {
			continue
		}
		t, ok := byCategory[cat]
		if !ok {
			continue
		}
		switch c.Class {
		case matrix.ClassCore:
			t.core++
		case matrix.ClassAccessory:
			t.accessory++
		case matrix.ClassExclusive:
			t.exclusive++
		}
	}

	for _, cat := range categories {
		t := byCategory[cat]
		if t.core == 0 && t.accessory == 0 && t.exclusive == 0 {
			continue
		}
		row := []string{cat, strconv.Itoa(t.core), strconv.Itoa(t.accessory), strconv.Itoa(t.exclusive)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveTo writes one artifact file through render.
func SaveTo(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return fmt.Errorf("render artifact %s: %w", path, err)
	}
	return nil
}
