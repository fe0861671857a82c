package align

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/yumyai/panscope/internal/util"
)

// Genome is one annotated input genome: an identifier derived from the file
// name plus the protein translations of its coding sequences. Immutable once
// discovered.
type Genome struct {
	ID          string
	ProteinFile string
}

// DiscoverGenomes lists the .faa query files under dir, one genome each,
// sorted by id so a run always enumerates jobs in the same order.
func DiscoverGenomes(dir string) ([]Genome, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.faa"))
	if err != nil {
		return nil, fmt.Errorf("list genomes in %s: %w", dir, err)
	}

	genomes := make([]Genome, 0, len(matches))
	for _, path := range matches {
		genomes = append(genomes, Genome{
			ID:          util.BaseNoExt(path),
			ProteinFile: path,
		})
	}

	sort.Slice(genomes, func(i, j int) bool { return genomes[i].ID < genomes[j].ID })
	return genomes, nil
}
