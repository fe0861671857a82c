// Run-scoped configuration. Everything here is decided before the first
// alignment job is dispatched and stays fixed for the whole run.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

const (
	DefaultIdentity = 70.0
	DefaultCoverage = 70.0
	DefaultEValue   = 5e-6
	DefaultTrials   = 100
)

type Config struct {
	// Mining thresholds, both in percent.
	MinIdentity float64
	MinCoverage float64
	EValue      float64

	// Worker pool size for alignment jobs.
	Workers int

	// Per-job wall clock limit. Zero means no limit.
	JobTimeout time.Duration

	// Rarefaction permutation trials and base seed.
	Trials int
	Seed   int64

	// PANSCOPE_DATA layout: <DataDir>/db holds the reference databases.
	DataDir string
	OutDir  string
}

// Default returns the configuration a run starts from before flags apply.
func Default() Config {
	return Config{
		MinIdentity: DefaultIdentity,
		MinCoverage: DefaultCoverage,
		EValue:      DefaultEValue,
		Workers:     defaultWorkers(),
		JobTimeout:  30 * time.Minute,
		Trials:      DefaultTrials,
		Seed:        1,
		DataDir:     dataDirFromEnv(),
		OutDir:      ".",
	}
}

// Leave headroom for the aligner's own internal threading.
func defaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

func dataDirFromEnv() string {
	if dir := os.Getenv("PANSCOPE_DATA"); dir != "" {
		return dir
	}
	return "./data"
}

// Validate rejects bad configuration before any job is dispatched.
func (c Config) Validate() error {
	if c.MinIdentity < 0 || c.MinIdentity > 100 {
		return fmt.Errorf("identity threshold %.2f outside [0,100]", c.MinIdentity)
	}
	if c.MinCoverage < 0 || c.MinCoverage > 100 {
		return fmt.Errorf("coverage threshold %.2f outside [0,100]", c.MinCoverage)
	}
	if c.EValue < 0 {
		return fmt.Errorf("e-value cutoff %g must not be negative", c.EValue)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker pool size %d must be at least 1", c.Workers)
	}
	if c.Trials < 1 {
		return fmt.Errorf("rarefaction trial count %d must be at least 1", c.Trials)
	}
	return nil
}
