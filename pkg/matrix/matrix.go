// Gene x genome presence matrix with identity values. The Builder is the
// single writer; a sealed Matrix is immutable and safe for concurrent reads.
package matrix

import (
	"fmt"
	"sort"

	"github.com/yumyai/panscope/pkg/mine"
)

type CellState uint8

const (
	// Absent: the job ran, nothing mapped this gene to this genome.
	Absent CellState = iota
	// Present: a best hit links gene and genome; identity recorded.
	Present
	// NotAnalyzed: the owning job failed. A missing measurement, never to
	// be conflated with a negative result.
	NotAnalyzed
)

type Cell struct {
	State    CellState
	Identity float64
}

// Builder accumulates best hits from resolved jobs of one database into a
// dense matrix keyed by stable integer indices.
type Builder struct {
	database string
	tool     string

	genomes   []string
	genomeIdx map[string]int

	genes   []string
	geneIdx map[string]int

	ident         [][]float64 // [gene][genome]
	state         [][]CellState
	notAnalyzed   []bool // per genome column
	sealed        bool
	malformedRows int
}

// NewBuilder lays out one column per submitted genome, in submission order,
// and one row per gene in the database's reference set.
func NewBuilder(database, tool string, genomes []string, referenceGenes []string) *Builder {
	b := &Builder{
		database:    database,
		tool:        tool,
		genomes:     append([]string(nil), genomes...),
		genomeIdx:   make(map[string]int, len(genomes)),
		geneIdx:     make(map[string]int),
		notAnalyzed: make([]bool, len(genomes)),
	}
	for i, g := range genomes {
		b.genomeIdx[g] = i
	}

	sorted := append([]string(nil), referenceGenes...)
	sort.Strings(sorted)
	for _, gene := range sorted {
		b.geneRow(gene)
	}
	return b
}

// geneRow returns the row index for gene, appending a new all-absent row the
// first time the gene is seen. Genes referenced only by hits still get a row:
// no silent row loss.
func (b *Builder) geneRow(gene string) int {
	if idx, ok := b.geneIdx[gene]; ok {
		return idx
	}
	idx := len(b.genes)
	b.genes = append(b.genes, gene)
	b.geneIdx[gene] = idx

	identRow := make([]float64, len(b.genomes))
	stateRow := make([]CellState, len(b.genomes))
	for col, na := range b.notAnalyzed {
		if na {
			stateRow[col] = NotAnalyzed
		}
	}
	b.ident = append(b.ident, identRow)
	b.state = append(b.state, stateRow)
	return idx
}

// MarkNotAnalyzed flags a whole genome column as unmeasured because its job
// failed.
func (b *Builder) MarkNotAnalyzed(genomeID string) error {
	if b.sealed {
		return fmt.Errorf("matrix for %s already sealed", b.database)
	}
	col, ok := b.genomeIdx[genomeID]
	if !ok {
		return fmt.Errorf("unknown genome %q", genomeID)
	}
	b.notAnalyzed[col] = true
	for row := range b.state {
		b.state[row][col] = NotAnalyzed
		b.ident[row][col] = 0
	}
	return nil
}

// AddBestHits records one succeeded job's best hits. resolve maps a raw
// subject id to a reference gene name; unresolvable subjects are dropped.
// When several queries of a genome map to the same gene, the highest
// identity wins, independent of hit order.
func (b *Builder) AddBestHits(genomeID string, hits []mine.BestHit, resolve func(subject string) (string, bool)) error {
	if b.sealed {
		return fmt.Errorf("matrix for %s already sealed", b.database)
	}
	col, ok := b.genomeIdx[genomeID]
	if !ok {
		return fmt.Errorf("unknown genome %q", genomeID)
	}
	if b.notAnalyzed[col] {
		return fmt.Errorf("genome %q column is marked not analyzed", genomeID)
	}

	for _, h := range hits {
		gene, ok := resolve(h.SubjectID)
		if !ok {
			continue
		}
		row := b.geneRow(gene)
		if b.state[row][col] == Present && b.ident[row][col] >= h.Identity {
			continue
		}
		b.state[row][col] = Present
		b.ident[row][col] = h.Identity
	}
	return nil
}

// CountMalformed accumulates the skip counts reported by the hit parser.
func (b *Builder) CountMalformed(n int) {
	b.malformedRows += n
}

// Seal freezes the matrix once every contributing job has resolved. Rows are
// reordered by gene id so identical resolved job sets always produce an
// identical matrix. The builder must not be used afterwards.
func (b *Builder) Seal() *Matrix {
	b.sealed = true

	order := make([]int, len(b.genes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return b.genes[order[i]] < b.genes[order[j]] })

	m := &Matrix{
		database:      b.database,
		tool:          b.tool,
		genomes:       b.genomes,
		genomeIdx:     b.genomeIdx,
		genes:         make([]string, len(b.genes)),
		geneIdx:       make(map[string]int, len(b.genes)),
		ident:         make([][]float64, len(b.genes)),
		state:         make([][]CellState, len(b.genes)),
		notAnalyzed:   b.notAnalyzed,
		malformedRows: b.malformedRows,
	}
	for to, from := range order {
		m.genes[to] = b.genes[from]
		m.geneIdx[b.genes[from]] = to
		m.ident[to] = b.ident[from]
		m.state[to] = b.state[from]
	}
	return m
}

// Matrix is the sealed, read-only result. The classifier and the rarefaction
// estimator consume it without ever mutating it.
type Matrix struct {
	database string
	tool     string

	genomes   []string
	genomeIdx map[string]int
	genes     []string
	geneIdx   map[string]int

	ident       [][]float64
	state       [][]CellState
	notAnalyzed []bool

	malformedRows int
}

func (m *Matrix) Database() string { return m.database }
func (m *Matrix) Tool() string     { return m.tool }

// MalformedRows is the total skip count across the contributing jobs.
func (m *Matrix) MalformedRows() int { return m.malformedRows }

func (m *Matrix) Genes() []string {
	return append([]string(nil), m.genes...)
}

func (m *Matrix) Genomes() []string {
	return append([]string(nil), m.genomes...)
}

func (m *Matrix) Cell(gene, genome string) (Cell, bool) {
	row, ok := m.geneIdx[gene]
	if !ok {
		return Cell{}, false
	}
	col, ok := m.genomeIdx[genome]
	if !ok {
		return Cell{}, false
	}
	return m.cellAt(row, col), true
}

func (m *Matrix) cellAt(row, col int) Cell {
	return Cell{State: m.state[row][col], Identity: m.ident[row][col]}
}

// AnalyzableGenomes lists the genome columns whose jobs succeeded.
func (m *Matrix) AnalyzableGenomes() []string {
	var out []string
	for i, g := range m.genomes {
		if !m.notAnalyzed[i] {
			out = append(out, g)
		}
	}
	return out
}

// presenceColumn returns the per-gene presence vector of one genome column.
func (m *Matrix) presenceColumn(col int) []bool {
	out := make([]bool, len(m.genes))
	for row := range m.genes {
		out[row] = m.state[row][col] == Present
	}
	return out
}
