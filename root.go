package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yumyai/panscope/logger"
	"github.com/yumyai/panscope/pkg/align"
	"github.com/yumyai/panscope/pkg/config"
	"github.com/yumyai/panscope/pkg/refdb"
	"github.com/yumyai/panscope/pkg/run"
	"github.com/yumyai/panscope/pkg/store"
	"go.uber.org/zap"
)

type rootFlags struct {
	databases map[string]*bool
	aligner   string
	genomeDir string
	history   string
}

func NewRootCmd() *cobra.Command {

	cfg := config.Default()
	flags := rootFlags{databases: make(map[string]*bool)}

	cmd := &cobra.Command{
		Use:   "panscope",
		Short: "Profile resistance and virulence genes across bacterial genomes",
		Long: `panscope aligns a set of annotated genomes (.faa protein files) against
curated reference gene databases, mines the best hit per query, and builds a
gene presence/absence matrix with pan-genome classification and rarefaction
curves. Results are written as semicolon-separated CSV files.`,
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd.Context(), cfg, flags)
		},
	}

	for _, name := range refdb.KnownNames() {
		selected := new(bool)
		flags.databases[name] = selected
		cmd.Flags().BoolVar(selected, name, false, fmt.Sprintf("align against the %s database", name))
	}

	cmd.Flags().StringVarP(&flags.aligner, "aligner", "a", "diamond", "alignment tool: diamond, blast or both")
	cmd.Flags().StringVarP(&flags.genomeDir, "genomes", "g", ".", "directory holding the input .faa genome files")
	cmd.Flags().StringVar(&flags.history, "history", "panscope.sqlite", "sqlite file recording runs and results, empty to disable")

	cmd.Flags().Float64VarP(&cfg.MinIdentity, "identity", "i", cfg.MinIdentity, "minimum percent identity")
	cmd.Flags().Float64VarP(&cfg.MinCoverage, "coverage", "c", cfg.MinCoverage, "minimum percent query coverage")
	cmd.Flags().Float64VarP(&cfg.EValue, "evalue", "e", cfg.EValue, "maximum e-value")

	cmd.Flags().IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "concurrent alignment jobs")
	cmd.Flags().DurationVar(&cfg.JobTimeout, "timeout", cfg.JobTimeout, "wall clock limit per alignment job, 0 to disable")
	cmd.Flags().IntVar(&cfg.Trials, "trials", cfg.Trials, "permutation trials per rarefaction point")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "base seed for rarefaction permutations")

	cmd.Flags().StringVar(&cfg.DataDir, "data", cfg.DataDir, "data directory holding db/ with the reference databases")
	cmd.Flags().StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "output directory for result files")

	return cmd
}

func runProfile(ctx context.Context, cfg config.Config, flags rootFlags) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var databases []*refdb.Database
	dbDir := filepath.Join(cfg.DataDir, "db")
	for _, name := range refdb.KnownNames() {
		if !*flags.databases[name] {
			continue
		}
		db, err := refdb.Load(name, dbDir)
		if err != nil {
			return err
		}
		databases = append(databases, db)
	}
	if len(databases) == 0 {
		return errors.New("no reference databases selected, pass at least one of --card --vfdb --bacmet --megares")
	}

	genomes, err := align.DiscoverGenomes(flags.genomeDir)
	if err != nil {
		return err
	}
	if len(genomes) == 0 {
		return fmt.Errorf("no .faa genome files found in %s", flags.genomeDir)
	}

	tools, err := selectTools(flags.aligner, cfg.EValue)
	if err != nil {
		return err
	}

	p := &run.Pipeline{
		Config:    cfg,
		Genomes:   genomes,
		Databases: databases,
		Tools:     tools,
	}

	if flags.history != "" {
		path := flags.history
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.OutDir, path)
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer st.Close()
		p.Store = st
	}

	summary, err := p.Execute(ctx)
	if summary != nil {
		for _, w := range summary.Warnings {
			logger.Warn(w)
		}
		logger.Info("wrote result files",
			zap.Int("artifacts", len(summary.Artifacts)),
			zap.String("out", cfg.OutDir))
	}
	return err
}

func selectTools(aligner string, evalue float64) ([]align.Tool, error) {
	switch aligner {
	case "diamond":
		return []align.Tool{align.NewDiamond("diamond", evalue)}, nil
	case "blast":
		return []align.Tool{align.NewBlast("blastp", "tblastn", evalue)}, nil
	case "both":
		return []align.Tool{
			align.NewDiamond("diamond", evalue),
			align.NewBlast("blastp", "tblastn", evalue),
		}, nil
	default:
		return nil, fmt.Errorf("unknown aligner %q, expected diamond, blast or both", aligner)
	}
}
