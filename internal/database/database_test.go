package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roversim/mobility/internal/model"
)

func TestGetSqliteDBInMemory(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestGetSqliteDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.db")
	m := NewManager(zerolog.Nop(), path)

	db, err := m.GetSqliteDB(path)
	require.NoError(t, err)
	require.NotNil(t, db)

	assert.FileExists(t, path)
}

func TestSetupMigratesSchema(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "rover.db"))
	require.NoError(t, err)
	m.DB = db

	require.NoError(t, m.Setup())

	// Migrated tables accept rows.
	run := model.Run{RunID: "test-run", AssetName: "rover_1"}
	require.NoError(t, m.DB.Create(&run).Error)
	assert.NotZero(t, run.ID)
}

func TestCloseWithoutConnection(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.NoError(t, m.Close())
}
