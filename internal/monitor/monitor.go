// Package monitor periodically reports run health: control ticks
// completed, telemetry queue depth and dropped publishes.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/roversim/mobility/internal/logging"
)

// TickSource reports control-loop progress.
type TickSource interface {
	TicksDone() uint64
}

// SinkStats reports telemetry sink backpressure.
type SinkStats interface {
	QueueLen() int
	Dropped() int64
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Ticks      TickSource
	Sink       SinkStats // may be nil when no async sink is wired

	// StatusPath, when set, receives a JSON status file rewritten each
	// interval.
	StatusPath string
	Interval   time.Duration
}

// Status is the per-interval health snapshot.
type Status struct {
	Time        time.Time `json:"time"`
	Ticks       uint64    `json:"ticks"`
	QueueLen    int       `json:"queue_len"`
	Dropped     int64     `json:"dropped"`
	TicksPerSec float64   `json:"ticks_per_sec"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	lastTicks uint64
	lastTime  time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Collect builds the current status snapshot.
func (s *Service) Collect() Status {
	now := time.Now()
	ticks := s.deps.Ticks.TicksDone()

	st := Status{
		Time:  now,
		Ticks: ticks,
	}
	if s.deps.Sink != nil {
		st.QueueLen = s.deps.Sink.QueueLen()
		st.Dropped = s.deps.Sink.Dropped()
	}
	if !s.lastTime.IsZero() {
		if dt := now.Sub(s.lastTime).Seconds(); dt > 0 {
			st.TicksPerSec = float64(ticks-s.lastTicks) / dt
		}
	}
	s.lastTicks = ticks
	s.lastTime = now
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusPath != "" {
			var err error
			statusFile, err = os.Create(s.deps.StatusPath)
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			}
		}
		if statusFile != nil {
			defer statusFile.Close()
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.Collect()

				logger.Info("run status",
					"ticks", st.Ticks,
					"ticks_per_sec", fmt.Sprintf("%.1f", st.TicksPerSec),
					"queue_len", st.QueueLen,
					"dropped", st.Dropped,
				)

				if statusFile != nil {
					data, err := json.MarshalIndent(st, "", "  ")
					if err != nil {
						data = []byte(fmt.Sprintf(`{"error": %q}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(data)
					statusFile.WriteString("\n")
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
