// Package influx implements a telemetry sink writing flows to InfluxDB,
// with a gzip line-protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/roversim/mobility/internal/telemetry"
)

// Sink writes samples to InfluxDB. Each flow becomes a measurement; the
// sample's channel values become fields.
type Sink struct {
	Client     influxdb2.Client
	Writer     influxdb2_api.WriteAPI
	BackupFile *os.File
	Backup     *gzip.Writer
	IsValid    bool
	Bucket     string
	Logger     zerolog.Logger
	BackupPath string
}

// NewSink creates an InfluxDB sink. backupPath receives gzip line protocol
// when the client cannot be initialized.
func NewSink(log zerolog.Logger, backupPath string) *Sink {
	return &Sink{
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB, or opens the backup writer
// when the server does not respond.
func (s *Sink) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return fmt.Errorf("influx.enabled is false")
	}

	s.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := s.Client.Ping(context.Background())
	if err != nil || !running {
		s.IsValid = false
		if s.Backup == nil {
			s.Logger.Info().Str("backupPath", s.BackupPath).
				Msg("InfluxDB unreachable, writing to backup file")

			file, err := os.OpenFile(s.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			s.BackupFile = file
			s.Backup = gzip.NewWriter(file)
		}
		return nil
	}

	s.IsValid = true
	if err := s.setupOrganizationAndBucket(); err != nil {
		return err
	}
	s.createWriter()
	s.Logger.Info().Str("bucket", s.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	org, err := s.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		s.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = s.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("creating organization %q: %w", orgName, err)
		}
	}

	_, err = s.Client.BucketsAPI().FindBucketByName(ctx, s.Bucket)
	if err != nil {
		s.Logger.Info().Str("bucket", s.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = s.Client.BucketsAPI().CreateBucketWithName(ctx, org, s.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			return fmt.Errorf("creating bucket %q: %w", s.Bucket, err)
		}
	}

	return nil
}

func (s *Sink) createWriter() {
	s.Writer = s.Client.WriteAPI(viper.GetString("influx.org"), s.Bucket)

	errorsCh := s.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			s.Logger.Error().Err(writeErr).Str("bucket", s.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// Publish writes one sample as a point, or appends line protocol to the
// backup file when no client is available.
func (s *Sink) Publish(sample telemetry.Sample) error {
	point := influxdb2_write.NewPointWithMeasurement(sample.Flow).
		SetTime(sample.Timestamp)
	for name, v := range sample.Fields {
		point.AddField(name, v.Any())
	}

	if s.IsValid {
		s.Writer.WritePoint(point)
		return nil
	}

	if s.Backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := s.Backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client or backup writer.
func (s *Sink) Close() error {
	if s.IsValid {
		s.Writer.Flush()
		s.Client.Close()
		return nil
	}
	if s.Backup != nil {
		if err := s.Backup.Close(); err != nil {
			return err
		}
		return s.BackupFile.Close()
	}
	return nil
}
