// roversim simulates the mobility subsystem of a four-wheeled rover and
// publishes its telemetry. A scripted event sequence can drive the run;
// without one the vehicle idles until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/roversim/mobility/internal/config"
	"github.com/roversim/mobility/internal/database"
	"github.com/roversim/mobility/internal/dispatcher"
	"github.com/roversim/mobility/internal/logging"
	"github.com/roversim/mobility/internal/monitor"
	intOtel "github.com/roversim/mobility/internal/otel"
	"github.com/roversim/mobility/internal/sequence"
	"github.com/roversim/mobility/internal/sim"
	"github.com/roversim/mobility/internal/sink/influx"
	"github.com/roversim/mobility/internal/sink/record"
	"github.com/roversim/mobility/internal/telemetry"
)

var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "roversim"
)

func main() {
	configDir := flag.String("config", ".", "directory containing roversim.cfg.json")
	sequencePath := flag.String("sequence", "", "YAML event sequence to replay")
	duration := flag.Duration("duration", 0, "simulation time to run (0 = until interrupted)")
	seed := flag.Int64("seed", 0, "override sim.seed")
	sinks := flag.String("sinks", "", "comma-separated sink list: log,influx,record")
	logLevel := flag.String("log-level", "", "override logLevel")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
		return
	}

	if err := run(*configDir, *sequencePath, *duration, *seed, *sinks, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(configDir, sequencePath string, duration time.Duration, seed int64, sinkList, logLevel string) error {
	runStart := time.Now()

	if err := config.Load(configDir); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flag overrides beat file values.
	if seed != 0 {
		viper.Set("sim.seed", seed)
	}
	if sinkList != "" {
		viper.Set("sink.types", strings.Split(sinkList, ","))
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, AppName, runStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	// OTel log pipeline, if enabled.
	var otelProvider *intOtel.Provider
	var otelLogProvider *sdklog.LoggerProvider
	if config.GetBool("otel.enabled") {
		otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  AppName,
			BatchTimeout: 5 * time.Second,
			LogWriter:    logFile,
			Endpoint:     config.GetString("otel.endpoint"),
			Insecure:     config.GetBool("otel.insecure"),
		})
		if err != nil {
			return fmt.Errorf("initializing OTel provider: %w", err)
		}
		otelLogProvider = otelProvider.LoggerProvider()
	}

	// The run context closure reads loop state that does not exist yet;
	// it captures the pointer and checks for nil, matching how the
	// logger gets wired before the components it describes.
	var loop *sim.Loop
	assetName := config.GetSinkConfig().AssetName

	setupOpts := []logging.SetupOption{
		logging.WithRunContext(func() []slog.Attr {
			attrs := []slog.Attr{slog.String("asset", assetName)}
			if loop != nil {
				attrs = append(attrs, slog.Uint64("tick", loop.TicksDone()))
			}
			return attrs
		}),
	}

	if config.GetBool("graylog.enabled") {
		gelfWriter, err := gelf.NewWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog writer unavailable: %v\n", err)
		} else {
			setupOpts = append(setupOpts, logging.WithGraylog(gelfWriter))
		}
	}

	logManager := logging.NewSlogManager()
	logManager.Setup(logFile, config.GetString("logLevel"), otelLogProvider, setupOpts...)
	logger := logManager.Logger()
	logger.Info("roversim starting",
		"version", Version, "config", configDir, "logs", logFilePath)

	simCfg := config.GetSimConfig()
	motorCfg := config.GetMotorConfig()
	sinkCfg := config.GetSinkConfig()

	// Sink-side logger.
	zlog := logging.NewZerolog(logFile, config.GetString("logLevel"))

	sink, closeSinks, err := buildSinks(sinkCfg, simCfg.Seed, logsDir, logger, zlog)
	if err != nil {
		return err
	}
	defer closeSinks()

	async, err := telemetry.NewAsyncSink(sink, sinkCfg.BufferSize, logger)
	if err != nil {
		return fmt.Errorf("creating async sink: %w", err)
	}
	defer func() {
		if err := async.CloseTimeout(sinkCfg.DrainTimeout); err != nil {
			logger.Error("telemetry drain incomplete", "error", err)
		}
	}()

	// Simulation components.
	clock := sim.NewClock(simCfg.ControlHz)
	faults := sim.NewFaultRegistry()
	machine := sim.NewStateMachine(faults, simCfg.TransitionLogDepth)
	env := sim.NewEnvironment(sim.EnvironmentState{
		LoadFactor:        simCfg.LoadFactor,
		AmbientTempC:      simCfg.AmbientTempC,
		SurfaceResistance: simCfg.SurfaceResistance,
	})

	params := sim.MotorParams{
		BaseCurrentMA:     motorCfg.BaseCurrentMA,
		LoadGainMA:        motorCfg.LoadGainMA,
		AccelGainMA:       motorCfg.AccelGainMA,
		MaxCurrentMA:      motorCfg.MaxCurrentMA,
		StallCurrentMA:    motorCfg.StallCurrentMA,
		TicksPerStep:      motorCfg.TicksPerStep,
		WindingOhms:       motorCfg.WindingOhms,
		HeatRateCPerJoule: motorCfg.HeatRateCPerJoule,
		CoolingPerSecond:  motorCfg.CoolingPerSecond,
		VariationPct:      motorCfg.VariationPct,
	}
	var motors []*sim.Motor
	for i, id := range sim.MotorIDs() {
		motors = append(motors, sim.NewMotor(id, params, simCfg.AmbientTempC, simCfg.Seed+int64(i)))
	}

	router, err := dispatcher.New(logger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	var source sim.EventSource
	if sequencePath != "" {
		seq, err := sequence.Load(sequencePath)
		if err != nil {
			return fmt.Errorf("loading sequence %s: %w", sequencePath, err)
		}
		logger.Info("sequence loaded", "path", sequencePath, "events", seq.Len())
		source = sequence.NewEngine(seq)
	}

	sysGen := telemetry.NewSysLogGenerator(simCfg.Seed, simCfg.SysLogChance)
	publisher, err := telemetry.NewPublisher(async, runStart, simCfg.ControlHz, simCfg.TelemetryHz, sysGen, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	loop, err = sim.NewLoop(sim.Dependencies{
		Clock:    clock,
		Machine:  machine,
		Faults:   faults,
		Env:      env,
		Motors:   motors,
		Source:   source,
		Router:   router,
		Observer: publisher,
		Logger:   logger,
	}, sim.LoopConfig{
		DriveDuty:          simCfg.DriveDuty,
		StallThresholdMA:   motorCfg.StallThresholdMA,
		StallDebounceTicks: motorCfg.StallDebounceTicks,
		NominalVoltage:     simCfg.NominalVoltage,
		SourceOhms:         simCfg.SourceOhms,
		TicksPerRev:        simCfg.TicksPerRev,
		WheelCircumM:       simCfg.WheelCircumM,
		HeaterOnBelowC:     simCfg.HeaterOnBelowC,
	})
	if err != nil {
		return fmt.Errorf("creating control loop: %w", err)
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: logManager,
		Ticks:      loop,
		Sink:       async,
		StatusPath: filepath.Join(logsDir, "status.json"),
		Interval:   time.Second,
	})
	monitorService.Start()
	defer monitorService.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("control loop running",
		"control_hz", simCfg.ControlHz, "telemetry_hz", simCfg.TelemetryHz,
		"duration", duration, "seed", simCfg.Seed)

	err = loop.Run(ctx, duration)
	switch {
	case err == nil:
		logger.Info("run complete", "ticks", loop.TicksDone(), "sim_time", clock.Now())
	case errors.Is(err, context.Canceled):
		logger.Info("run interrupted", "ticks", loop.TicksDone(), "sim_time", clock.Now())
	default:
		logger.Error("control loop failed", "error", err)
	}

	if otelProvider != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Flush(flushCtx); err != nil {
			logger.Error("OTel flush failed", "error", err)
		}
		defer otelProvider.Shutdown(flushCtx)
	}

	return nil
}

// buildSinks assembles the configured sink chain. Every configured sink
// receives every sample.
func buildSinks(cfg config.SinkConfig, seed int64, logsDir string, logger *slog.Logger, zlog zerolog.Logger) (telemetry.Sink, func(), error) {
	var sinks []telemetry.Sink
	var closers []func()

	for _, kind := range cfg.Types {
		switch strings.TrimSpace(kind) {
		case "log":
			sinks = append(sinks, telemetry.NewLogSink(logger))

		case "influx":
			is := influx.NewSink(zlog, filepath.Join(logsDir, "telemetry.lp.gz"))
			if err := is.Connect(); err != nil {
				return nil, nil, fmt.Errorf("connecting influx sink: %w", err)
			}
			sinks = append(sinks, is)

		case "record":
			db := database.NewManager(zlog, filepath.Join(logsDir, "roversim.db"))
			if err := db.Connect(); err != nil {
				return nil, nil, fmt.Errorf("connecting record database: %w", err)
			}
			if err := db.Setup(); err != nil {
				return nil, nil, fmt.Errorf("migrating record database: %w", err)
			}
			rec, err := record.NewSink(db, cfg.AssetName, seed, zlog)
			if err != nil {
				return nil, nil, fmt.Errorf("creating record sink: %w", err)
			}
			logger.Info("recording run", "run_id", rec.RunID())
			sinks = append(sinks, rec)
			closers = append(closers, func() { db.Close() })

		default:
			return nil, nil, fmt.Errorf("unknown sink type %q", kind)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, telemetry.NewLogSink(logger))
	}

	var sink telemetry.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = telemetry.NewMultiSink(sinks...)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return sink, closeAll, nil
}
