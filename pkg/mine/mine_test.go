package mine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yumyai/panscope/pkg/align"
)

func hit(query, subject string, identity float64, length, qlen int, bitscore float64) align.RawHit {
	return align.RawHit{
		QueryID:   query,
		SubjectID: subject,
		Identity:  identity,
		Length:    length,
		QueryLen:  qlen,
		EValue:    1e-20,
		Bitscore:  bitscore,
	}
}

func TestFilterThresholds(t *testing.T) {
	th := Thresholds{MinIdentity: 70, MinCoverage: 70}

	hits := []align.RawHit{
		hit("q1", "s1", 99, 100, 100, 200), // passes
		hit("q2", "s2", 69.9, 100, 100, 200), // identity below
		hit("q3", "s3", 99, 69, 100, 200),  // coverage below
		hit("q4", "s4", 70, 70, 100, 200),  // exactly at both minima
	}

	kept := Filter(hits, th)
	require.Len(t, kept, 2)
	assert.Equal(t, "q1", kept[0].QueryID)
	assert.Equal(t, "q4", kept[1].QueryID)
}

func TestFilterEValueCutoff(t *testing.T) {
	th := Thresholds{MinIdentity: 0, MinCoverage: 0, MaxEValue: 5e-6}

	loose := hit("q1", "s1", 99, 100, 100, 200)
	loose.EValue = 1e-3

	kept := Filter([]align.RawHit{loose, hit("q2", "s2", 99, 100, 100, 200)}, th)
	require.Len(t, kept, 1)
	assert.Equal(t, "q2", kept[0].QueryID)
}

// Two hits for the same query, bitscores 180 and 220: the 220 hit wins even
// though its identity differs.
func TestBestHitPrefersBitscore(t *testing.T) {
	hits := []align.RawHit{
		hit("q1", "low", 71, 90, 100, 180),
		hit("q1", "high", 99, 90, 100, 220),
	}

	best := Mine(hits, Thresholds{MinIdentity: 70, MinCoverage: 70})
	require.Len(t, best, 1)
	assert.Equal(t, "high", best[0].SubjectID)
	assert.Equal(t, 220.0, best[0].Bitscore)
}

func TestBestHitTieBreakOrder(t *testing.T) {

	cases := []struct {
		name string
		a, b align.RawHit
		want string
	}{
		{
			name: "identity breaks bitscore tie",
			a:    hit("q", "s_low", 80, 90, 100, 200),
			b:    hit("q", "s_high", 95, 90, 100, 200),
			want: "s_high",
		},
		{
			name: "coverage breaks identity tie",
			a:    hit("q", "s_short", 95, 80, 100, 200),
			b:    hit("q", "s_long", 95, 95, 100, 200),
			want: "s_long",
		},
		{
			name: "smaller subject id breaks full tie",
			a:    hit("q", "geneB", 95, 90, 100, 200),
			b:    hit("q", "geneA", 95, 90, 100, 200),
			want: "geneA",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			best := SelectBest([]align.RawHit{tc.a, tc.b})
			require.Len(t, best, 1)
			assert.Equal(t, tc.want, best[0].SubjectID)

			// Input order must not matter.
			best = SelectBest([]align.RawHit{tc.b, tc.a})
			require.Len(t, best, 1)
			assert.Equal(t, tc.want, best[0].SubjectID)
		})
	}
}

func TestSelectBestOnePerQuery(t *testing.T) {
	hits := []align.RawHit{
		hit("q1", "s1", 90, 90, 100, 150),
		hit("q1", "s2", 90, 90, 100, 160),
		hit("q2", "s3", 90, 90, 100, 100),
		hit("q3", "s4", 90, 90, 100, 110),
		hit("q3", "s5", 90, 90, 100, 90),
	}

	best := SelectBest(hits)
	require.Len(t, best, 3)
	assert.Equal(t, "q1", best[0].QueryID)
	assert.Equal(t, "s2", best[0].SubjectID)
	assert.Equal(t, "q2", best[1].QueryID)
	assert.Equal(t, "q3", best[2].QueryID)
	assert.Equal(t, "s4", best[2].SubjectID)
}

// Shuffling identical input must always reproduce the same best-hit set.
func TestSelectBestDeterministic(t *testing.T) {
	base := []align.RawHit{
		hit("q1", "sB", 90, 90, 100, 200),
		hit("q1", "sA", 90, 90, 100, 200),
		hit("q1", "sC", 95, 90, 100, 200),
		hit("q2", "sD", 80, 85, 100, 120),
		hit("q2", "sE", 80, 85, 100, 120),
	}

	reference := SelectBest(base)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		shuffled := make([]align.RawHit, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		assert.Equal(t, reference, SelectBest(shuffled))
	}
}

func TestMineEmptyInput(t *testing.T) {
	assert.Empty(t, Mine(nil, Thresholds{MinIdentity: 70, MinCoverage: 70}))
}
