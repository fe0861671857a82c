package align

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/yumyai/panscope/pkg/refdb"
)

// OutFormatColumns is the fixed tabular schema every tool is asked to emit:
// tab-separated, one row per hit, no header line.
const OutFormatColumns = "qseqid sseqid pident length qlen evalue bitscore"

// Tool is an external aligner invoked as a subprocess. Implementations must
// honor ctx so a job can be timed out or cancelled without blocking workers.
type Tool interface {
	Name() string
	Supports(db *refdb.Database) bool
	Align(ctx context.Context, queryFile string, db *refdb.Database, outFile string) error
}

// ToolError carries the failure reason recorded on the job plus whatever the
// tool printed on stderr. Diagnostics are never discarded.
type ToolError struct {
	Reason     string
	Diagnostic string
	Err        error
}

func (e *ToolError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Diagnostic)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ToolError) Unwrap() error { return e.Err }

// Diamond wraps the diamond executable. Protein databases only.
type Diamond struct {
	Exe    string
	EValue float64
}

func NewDiamond(exe string, evalue float64) Diamond {
	return Diamond{Exe: exe, EValue: evalue}
}

func (d Diamond) Name() string { return "diamond" }

// diamond has no tblastn mode, nucleotide databases need BLAST.
func (d Diamond) Supports(db *refdb.Database) bool { return db.Kind == refdb.Protein }

func (d Diamond) Align(ctx context.Context, queryFile string, db *refdb.Database, outFile string) error {
	args := []string{
		"blastp",
		"-q", queryFile,
		"-d", db.DiamondIndex,
		"-o", outFile,
		"--quiet",
		"-k", "1",
		"-e", formatEValue(d.EValue),
		"-f", "6",
	}
	args = append(args, strings.Fields(OutFormatColumns)...)
	return runTool(ctx, d.Exe, args)
}

// Blast wraps NCBI BLAST+: blastp against protein databases, tblastn against
// nucleotide ones (protein query vs translated nucleotide subject).
type Blast struct {
	BlastpExe  string
	TblastnExe string
	EValue     float64
}

func NewBlast(blastp, tblastn string, evalue float64) Blast {
	return Blast{BlastpExe: blastp, TblastnExe: tblastn, EValue: evalue}
}

func (b Blast) Name() string { return "blast" }

func (b Blast) Supports(db *refdb.Database) bool { return true }

func (b Blast) Align(ctx context.Context, queryFile string, db *refdb.Database, outFile string) error {
	exe := b.BlastpExe
	if db.Kind == refdb.Nucleotide {
		exe = b.TblastnExe
	}
	args := []string{
		"-query", queryFile,
		"-db", db.BlastIndex,
		"-out", outFile,
		"-max_target_seqs", "1",
		"-evalue", formatEValue(b.EValue),
		"-outfmt", "6 " + OutFormatColumns,
	}
	return runTool(ctx, exe, args)
}

func formatEValue(e float64) string {
	return strconv.FormatFloat(e, 'g', -1, 64)
}

func runTool(ctx context.Context, exe string, args []string) error {
	cmd := exec.CommandContext(ctx, exe, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// The process error is uninformative once the context fired; report the
	// context verdict instead.
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &ToolError{Reason: ReasonTimeout, Diagnostic: stderr.String(), Err: err}
	case context.Canceled:
		return &ToolError{Reason: ReasonCancelled, Diagnostic: stderr.String(), Err: err}
	}

	if errors.Is(err, exec.ErrNotFound) {
		return &ToolError{Reason: ReasonToolError, Diagnostic: fmt.Sprintf("executable %q not found", exe), Err: err}
	}

	return &ToolError{Reason: ReasonToolError, Diagnostic: stderr.String(), Err: err}
}
