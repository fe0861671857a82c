// Curated reference gene databases (CARD, VFDB, BacMet, MEGARes).
// A Database is loaded once per run and read-only afterwards.
package refdb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yumyai/panscope/logger"
	"go.uber.org/zap"
)

type Kind int

const (
	Protein Kind = iota
	Nucleotide
)

func (k Kind) String() string {
	if k == Nucleotide {
		return "nucleotide"
	}
	return "protein"
}

type Database struct {
	Name string
	Kind Kind

	FastaPath    string
	DiamondIndex string // <base>.dmnd
	BlastIndex   string // makeblastdb output base

	geneByAccession map[string]string
	classByGene     map[string]string
	mechanismByGene map[string]string
	accessions      []string // sorted accession keys, for deterministic fallback scans
}

// Fasta file names as shipped by the upstream curators.
var fastaNames = map[string]string{
	"card":    "card_protein_homolog_model.fasta",
	"vfdb":    "vfdb_core.fasta",
	"bacmet":  "bacmet_2.fasta",
	"megares": "megares_v3.fasta",
}

var kinds = map[string]Kind{
	"card":    Protein,
	"vfdb":    Protein,
	"bacmet":  Protein,
	"megares": Nucleotide,
}

func New(name string, kind Kind) *Database {
	return &Database{
		Name:            name,
		Kind:            kind,
		geneByAccession: make(map[string]string),
		classByGene:     make(map[string]string),
		mechanismByGene: make(map[string]string),
	}
}

// AddMapping registers one reference gene entry.
func (d *Database) AddMapping(accession, gene, class, mechanism string) {
	if _, seen := d.geneByAccession[accession]; !seen {
		d.accessions = append(d.accessions, accession)
		sort.Strings(d.accessions)
	}
	d.geneByAccession[accession] = gene
	if class != "" {
		d.classByGene[gene] = class
	}
	if mechanism != "" {
		d.mechanismByGene[gene] = mechanism
	}
}

// Load reads a known database from <dbDir> and extracts gene metadata
// from its FASTA headers.
func Load(name, dbDir string) (*Database, error) {
	fasta, ok := fastaNames[name]
	if !ok {
		return nil, fmt.Errorf("unknown reference database %q", name)
	}

	db := New(name, kinds[name])
	db.FastaPath = filepath.Join(dbDir, fasta)
	base := strings.TrimSuffix(db.FastaPath, ".fasta")
	db.DiamondIndex = base + ".dmnd"
	db.BlastIndex = base

	f, err := os.Open(db.FastaPath)
	if err != nil {
		return nil, fmt.Errorf("open %s fasta: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ">") {
			continue
		}
		acc, gene, class, mech, ok := parseHeader(name, line)
		if !ok {
			continue
		}
		db.AddMapping(acc, gene, class, mech)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s fasta: %w", name, err)
	}

	if len(db.geneByAccession) == 0 {
		logger.Warn("no gene mappings extracted, analysis may come up empty",
			zap.String("database", name))
	}
	logger.Info("loaded reference database",
		zap.String("database", name),
		zap.Int("mappings", len(db.geneByAccession)))

	return db, nil
}

// ResolveSubject maps a raw subject sequence id from alignment output to a
// gene name. MEGARes ids resolve on the exact MEG_ accession; everything else
// falls back to a substring scan over known accessions, first match in sorted
// accession order.
func (d *Database) ResolveSubject(subject string) (string, bool) {

	if strings.HasPrefix(subject, "MEG_") && strings.Contains(subject, "|") {
		parts := strings.Split(subject, "|")
		if gene, ok := d.geneByAccession[parts[0]]; ok {
			return gene, true
		}
		// Not in the extracted mapping, take the gene field from the id itself.
		if len(parts) >= 5 && strings.TrimSpace(parts[4]) != "" {
			return strings.TrimSpace(parts[4]), true
		}
	}

	if gene, ok := d.geneByAccession[subject]; ok {
		return gene, true
	}

	for _, acc := range d.accessions {
		if strings.Contains(subject, acc) {
			return d.geneByAccession[acc], true
		}
	}

	return "", false
}

// Genes returns the sorted gene universe of the database.
func (d *Database) Genes() []string {
	seen := make(map[string]struct{}, len(d.geneByAccession))
	for _, g := range d.geneByAccession {
		seen[g] = struct{}{}
	}
	genes := make([]string, 0, len(seen))
	for g := range seen {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

func (d *Database) ClassOf(gene string) (string, bool) {
	c, ok := d.classByGene[gene]
	return c, ok
}

func (d *Database) MechanismOf(gene string) (string, bool) {
	m, ok := d.mechanismByGene[gene]
	return m, ok
}

// Classes returns the sorted set of metadata classes seen in the database.
func (d *Database) Classes() []string {
	seen := make(map[string]struct{})
	for _, c := range d.classByGene {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Mechanisms returns the sorted set of mechanisms seen in the database.
func (d *Database) Mechanisms() []string {
	seen := make(map[string]struct{})
	for _, m := range d.mechanismByGene {
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// KnownNames lists the loadable database names.
func KnownNames() []string {
	names := make([]string, 0, len(fastaNames))
	for n := range fastaNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
