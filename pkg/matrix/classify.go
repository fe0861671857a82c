package matrix

import "errors"

// ErrEmptyAnalyzableSet is surfaced when every job for a database failed and
// classification or rarefaction would be meaningless.
var ErrEmptyAnalyzableSet = errors.New("no analyzable genomes: every alignment job failed for this database")

type Class string

const (
	ClassCore      Class = "Core"
	ClassAccessory Class = "Accessory"
	ClassExclusive Class = "Exclusive"
	ClassAbsent    Class = "Absent"
)

// GeneClassification records the label together with the analyzable genome
// count n and presence count p it was derived from.
type GeneClassification struct {
	Gene       string
	Class      Class
	Analyzable int // n: genomes with a measured cell for this gene
	Present    int // p: of those, genomes where the gene is present
}

// Classify labels every gene row of a sealed matrix using only the columns
// that were actually measured. Rows come back in the matrix's gene order.
func Classify(m *Matrix) ([]GeneClassification, error) {

	if len(m.AnalyzableGenomes()) == 0 {
		return nil, ErrEmptyAnalyzableSet
	}

	out := make([]GeneClassification, 0, len(m.genes))
	for row, gene := range m.genes {

		n, p := 0, 0
		for col := range m.genomes {
			cell := m.cellAt(row, col)
			if cell.State == NotAnalyzed {
				continue
			}
			n++
			if cell.State == Present {
				p++
			}
		}

		cls := GeneClassification{Gene: gene, Analyzable: n, Present: p}
		switch {
		case p == 0:
			cls.Class = ClassAbsent
		case p == n:
			cls.Class = ClassCore
		case p == 1:
			cls.Class = ClassExclusive
		default:
			cls.Class = ClassAccessory
		}
		out = append(out, cls)
	}

	return out, nil
}
