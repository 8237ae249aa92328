package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestScoreZonasi(t *testing.T) {
	path := &models.RegistrationPath{
		PathType:      models.PathTypeZonasi,
		ScoringConfig: mustJSON(t, models.ZonasiScoringConfig{MaxDistanceKM: 5, Weight: 1.0}),
	}

	distance1 := 2.0
	reg1 := &models.Registration{PathData: mustJSON(t, models.ZonasiPathData{DistanceKM: &distance1})}
	score1, err := Score(Input{Registration: reg1, Path: path})
	require.NoError(t, err)
	assert.InDelta(t, 60.0, score1, TieTolerance)

	distance2 := 4.9
	reg2 := &models.Registration{PathData: mustJSON(t, models.ZonasiPathData{DistanceKM: &distance2})}
	score2, err := Score(Input{Registration: reg2, Path: path})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score2, TieTolerance)
}

func TestScoreZonasiMissingDistance(t *testing.T) {
	path := &models.RegistrationPath{
		PathType:      models.PathTypeZonasi,
		ScoringConfig: mustJSON(t, models.ZonasiScoringConfig{MaxDistanceKM: 5, Weight: 1.0}),
	}
	reg := &models.Registration{PathData: mustJSON(t, models.ZonasiPathData{})}
	score, err := Score(Input{Registration: reg, Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScorePrestasiWeightedSum(t *testing.T) {
	path := &models.RegistrationPath{
		PathType:      models.PathTypePrestasi,
		ScoringConfig: mustJSON(t, models.PrestasiScoringConfig{RaporWeight: 0.6, AchievementWeight: 0.4}),
	}
	rapor := 90.0
	achievement := 75.0
	reg := &models.Registration{PathData: mustJSON(t, models.PrestasiPathData{RaporAverage: &rapor, AchievementPoints: &achievement})}
	score, err := Score(Input{Registration: reg, Path: path})
	require.NoError(t, err)
	assert.InDelta(t, 84.0, score, TieTolerance)
}

func TestScoreAfirmasiBonuses(t *testing.T) {
	path := &models.RegistrationPath{
		PathType:      models.PathTypeAfirmasi,
		ScoringConfig: mustJSON(t, models.AfirmasiScoringConfig{}),
	}
	reg := &models.Registration{PathData: mustJSON(t, models.AfirmasiPathData{KIP: true, Disabled: true})}
	score, err := Score(Input{Registration: reg, Path: path})
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)

	regBase := &models.Registration{PathData: mustJSON(t, models.AfirmasiPathData{})}
	scoreBase, err := Score(Input{Registration: regBase, Path: path})
	require.NoError(t, err)
	assert.Equal(t, 60.0, scoreBase)
}

func TestScorePerpindahanTugasByDocumentStatus(t *testing.T) {
	path := &models.RegistrationPath{PathType: models.PathTypePerpindahanTugas}
	reg := &models.Registration{}

	approved := models.DocumentApproved
	score, err := Score(Input{Registration: reg, Path: path, TransferDocStatus: &approved})
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)

	pending := models.DocumentPending
	score, err = Score(Input{Registration: reg, Path: path, TransferDocStatus: &pending})
	require.NoError(t, err)
	assert.Equal(t, 50.0, score)

	score, err = Score(Input{Registration: reg, Path: path, TransferDocStatus: nil})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScoresEqualTolerance(t *testing.T) {
	assert.True(t, ScoresEqual(85.0, 85.0+5e-7))
	assert.False(t, ScoresEqual(85.0, 85.1))
}
