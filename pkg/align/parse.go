package align

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RawHit is one row of a job's tabular output, column order per
// OutFormatColumns.
type RawHit struct {
	QueryID   string
	SubjectID string
	Identity  float64 // percent, 0-100
	Length    int     // alignment length
	QueryLen  int
	EValue    float64
	Bitscore  float64
}

// Coverage is the fraction of the query spanned by the alignment, in percent.
func (h RawHit) Coverage() float64 {
	if h.QueryLen <= 0 {
		return 0
	}
	return float64(h.Length) / float64(h.QueryLen) * 100
}

// ParseOutput reads one job's raw tabular output and returns its hits in
// file order plus the count of malformed rows. Malformed rows never fail the
// job; a genome may legitimately have no matches at all.
func ParseOutput(r io.Reader) ([]RawHit, int) {

	var hits []RawHit
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		hit, ok := parseRow(line)
		if !ok {
			skipped++
			continue
		}
		hits = append(hits, hit)
	}

	return hits, skipped
}

// ParseFile opens a succeeded job's output artifact and parses it.
func ParseFile(path string) ([]RawHit, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open alignment output: %w", err)
	}
	defer f.Close()

	hits, skipped := ParseOutput(f)
	return hits, skipped, nil
}

func parseRow(line string) (RawHit, bool) {
	cols := strings.Split(line, "\t")
	if len(cols) != 7 {
		return RawHit{}, false
	}

	identity, err := strconv.ParseFloat(cols[2], 64)
	if err != nil {
		return RawHit{}, false
	}
	length, err := strconv.Atoi(cols[3])
	if err != nil {
		return RawHit{}, false
	}
	qlen, err := strconv.Atoi(cols[4])
	if err != nil {
		return RawHit{}, false
	}
	evalue, err := strconv.ParseFloat(cols[5], 64)
	if err != nil {
		return RawHit{}, false
	}
	bitscore, err := strconv.ParseFloat(cols[6], 64)
	if err != nil {
		return RawHit{}, false
	}

	return RawHit{
		QueryID:   cols[0],
		SubjectID: cols[1],
		Identity:  identity,
		Length:    length,
		QueryLen:  qlen,
		EValue:    evalue,
		Bitscore:  bitscore,
	}, true
}
