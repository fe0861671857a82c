package refdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yumyai/panscope/logger"
	"go.uber.org/zap/zapcore"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(zapcore.ErrorLevel); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const cardFasta = `>gb|ACT97415.1|ARO:3002999|CblA-1 [mixed culture bacterium AX_gF3SD01_15]
MAAAKKLLLT
>gb|AAC44793.1|ARO:3002523|OXA-12 [Aeromonas jandaei]
MKTTVLAAAV
not a header line
>malformed
SEQDATA
`

func TestLoadCard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card_protein_homolog_model.fasta"), []byte(cardFasta), 0o644))

	db, err := Load("card", dir)
	require.NoError(t, err)

	assert.Equal(t, Protein, db.Kind)
	assert.Equal(t, []string{"CblA-1", "OXA-12"}, db.Genes())
	assert.Equal(t, filepath.Join(dir, "card_protein_homolog_model.dmnd"), db.DiamondIndex)

	gene, ok := db.ResolveSubject("ACT97415.1")
	require.True(t, ok)
	assert.Equal(t, "CblA-1", gene)
}

func TestLoadUnknownDatabase(t *testing.T) {
	_, err := Load("resfinder", t.TempDir())
	assert.Error(t, err)
}

func TestLoadMissingFasta(t *testing.T) {
	_, err := Load("card", t.TempDir())
	assert.Error(t, err)
}
