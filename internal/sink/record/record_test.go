package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roversim/mobility/internal/database"
	"github.com/roversim/mobility/internal/model"
	"github.com/roversim/mobility/internal/telemetry"
)

func newTestManager(t *testing.T) *database.Manager {
	t.Helper()
	m := database.NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "test.db"))
	db, err := m.GetSqliteDB(m.SqliteFilePath)
	require.NoError(t, err)
	m.DB = db
	m.IsValid = true
	require.NoError(t, m.Setup())
	return m
}

func TestNewSinkRequiresConnectedManager(t *testing.T) {
	m := database.NewManager(zerolog.Nop(), "")
	_, err := NewSink(m, "rover_1", 1, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewSinkCreatesRunRow(t *testing.T) {
	m := newTestManager(t)
	s, err := NewSink(m, "rover_1", 42, zerolog.Nop())
	require.NoError(t, err)

	_, err = uuid.Parse(s.RunID())
	assert.NoError(t, err)

	var run model.Run
	require.NoError(t, m.DB.Where("run_id = ?", s.RunID()).First(&run).Error)
	assert.Equal(t, "rover_1", run.AssetName)
	assert.Equal(t, int64(42), run.Seed)
	assert.Nil(t, run.EndedAt)

	require.NoError(t, s.Close())
}

func TestPublishPersistsOnClose(t *testing.T) {
	m := newTestManager(t)
	s, err := NewSink(m, "rover_1", 1, zerolog.Nop())
	require.NoError(t, err)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Publish(telemetry.Sample{
		Flow:      telemetry.FlowVehicle50Hz,
		Timestamp: ts,
		Fields: map[string]telemetry.Value{
			"voltage": telemetry.Int32Value(12),
			"gpio":    telemetry.BitFieldValue(5),
		},
	}))
	require.NoError(t, s.Publish(telemetry.Sample{
		Flow:      telemetry.FlowStateLogs,
		Timestamp: ts,
		Fields:    map[string]telemetry.Value{"log": telemetry.StringValue("State transition from Idle to Forward Drive (command forward)")},
	}))

	// Close flushes the buffer and stamps the run end.
	require.NoError(t, s.Close())

	var samples []model.Sample
	require.NoError(t, m.DB.Where("run_id = ?", s.RunID()).Order("id").Find(&samples).Error)
	require.Len(t, samples, 2)
	assert.Equal(t, telemetry.FlowVehicle50Hz, samples[0].Flow)
	assert.JSONEq(t, `{"voltage":12,"gpio":5}`, string(samples[0].Fields))
	assert.Equal(t, telemetry.FlowStateLogs, samples[1].Flow)

	var run model.Run
	require.NoError(t, m.DB.Where("run_id = ?", s.RunID()).First(&run).Error)
	assert.NotNil(t, run.EndedAt)
}

func TestDistinctRunsGetDistinctIDs(t *testing.T) {
	m := newTestManager(t)

	s1, err := NewSink(m, "rover_1", 1, zerolog.Nop())
	require.NoError(t, err)
	s2, err := NewSink(m, "rover_2", 2, zerolog.Nop())
	require.NoError(t, err)

	assert.NotEqual(t, s1.RunID(), s2.RunID())
	require.NoError(t, s1.Close())
	require.NoError(t, s2.Close())

	var count int64
	require.NoError(t, m.DB.Model(&model.Run{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
