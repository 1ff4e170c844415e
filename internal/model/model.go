package model

import (
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels lists every struct migrated into the recording schema.
var DatabaseModels = []interface{}{
	&Run{},
	&Sample{},
}

// Run is one recorded simulation run.
type Run struct {
	ID        uint   `gorm:"primarykey"`
	RunID     string `gorm:"uniqueIndex;size:36"`
	AssetName string `gorm:"size:64"`
	Seed      int64
	StartedAt time.Time
	EndedAt   *time.Time
}

// Sample is one published telemetry sample. Fields holds the channel
// name/value mapping as JSON so every flow shares one table.
type Sample struct {
	ID        uint   `gorm:"primarykey"`
	RunID     string `gorm:"index;size:36"`
	Flow      string `gorm:"index;size:32"`
	Timestamp time.Time
	Fields    datatypes.JSON
}
