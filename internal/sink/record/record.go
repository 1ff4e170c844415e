// Package record implements a telemetry sink that persists every published
// sample to a relational database, so demo runs can be replayed and
// inspected after the fact.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roversim/mobility/internal/database"
	"github.com/roversim/mobility/internal/model"
	"github.com/roversim/mobility/internal/queue"
	"github.com/roversim/mobility/internal/telemetry"
)

// Sink batches samples in memory and flushes them to the database on an
// interval, keeping Publish cheap for the async worker that calls it.
type Sink struct {
	db     *database.Manager
	runID  string
	buffer *queue.Queue[model.Sample]
	logger zerolog.Logger

	flushEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
}

// NewSink opens a run on a connected database manager and starts the flush
// worker.
func NewSink(db *database.Manager, assetName string, seed int64, log zerolog.Logger) (*Sink, error) {
	if !db.IsValid {
		return nil, fmt.Errorf("database manager not connected")
	}

	s := &Sink{
		db:         db,
		runID:      uuid.NewString(),
		buffer:     queue.New[model.Sample](),
		logger:     log,
		flushEvery: time.Second,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	run := model.Run{
		RunID:     s.runID,
		AssetName: assetName,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
	if err := db.DB.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("creating run row: %w", err)
	}
	s.logger.Info().Str("runId", s.runID).Msg("Recording run started")

	go s.flushWorker()
	return s, nil
}

// RunID returns the identifier assigned to this run.
func (s *Sink) RunID() string {
	return s.runID
}

// Publish buffers one sample for the next flush.
func (s *Sink) Publish(sample telemetry.Sample) error {
	fields := make(map[string]any, len(sample.Fields))
	for name, v := range sample.Fields {
		fields[name] = v.Any()
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshaling sample fields: %w", err)
	}

	s.buffer.Push(model.Sample{
		RunID:     s.runID,
		Flow:      sample.Flow,
		Timestamp: sample.Timestamp,
		Fields:    raw,
	})
	return nil
}

// Close flushes the remaining buffer and stamps the run's end time.
func (s *Sink) Close() error {
	close(s.stop)
	<-s.done
	s.flush()

	now := time.Now().UTC()
	err := s.db.DB.Model(&model.Run{}).
		Where("run_id = ?", s.runID).
		Update("ended_at", &now).Error
	if err != nil {
		return fmt.Errorf("closing run row: %w", err)
	}
	s.logger.Info().Str("runId", s.runID).Msg("Recording run closed")
	return nil
}

func (s *Sink) flushWorker() {
	defer close(s.done)
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Sink) flush() {
	batch := s.buffer.GetAndEmpty()
	if len(batch) == 0 {
		return
	}
	if err := s.db.DB.Create(&batch).Error; err != nil {
		s.logger.Error().Err(err).Int("samples", len(batch)).
			Msg("Failed to write sample batch")
		return
	}
	s.logger.Debug().Int("samples", len(batch)).Msg("Flushed sample batch")
}
