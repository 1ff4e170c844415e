package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MotorConfig holds the electromechanical constants for one wheel motor.
// Values map to the per-step current/encoder/thermal model.
type MotorConfig struct {
	BaseCurrentMA      float64 `json:"baseCurrentMA" mapstructure:"baseCurrentMA"`
	LoadGainMA         float64 `json:"loadGainMA" mapstructure:"loadGainMA"`
	AccelGainMA        float64 `json:"accelGainMA" mapstructure:"accelGainMA"`
	MaxCurrentMA       float64 `json:"maxCurrentMA" mapstructure:"maxCurrentMA"`
	StallCurrentMA     float64 `json:"stallCurrentMA" mapstructure:"stallCurrentMA"`
	StallThresholdMA   float64 `json:"stallThresholdMA" mapstructure:"stallThresholdMA"`
	StallDebounceTicks int     `json:"stallDebounceTicks" mapstructure:"stallDebounceTicks"`
	TicksPerStep       float64 `json:"ticksPerStep" mapstructure:"ticksPerStep"`
	WindingOhms        float64 `json:"windingOhms" mapstructure:"windingOhms"`
	HeatRateCPerJoule  float64 `json:"heatRateCPerJoule" mapstructure:"heatRateCPerJoule"`
	CoolingPerSecond   float64 `json:"coolingPerSecond" mapstructure:"coolingPerSecond"`
	VariationPct       float64 `json:"variationPct" mapstructure:"variationPct"`
}

// SimConfig holds vehicle-level simulation settings.
type SimConfig struct {
	ControlHz          int     `json:"controlHz" mapstructure:"controlHz"`
	TelemetryHz        int     `json:"telemetryHz" mapstructure:"telemetryHz"`
	DriveDuty          float64 `json:"driveDuty" mapstructure:"driveDuty"`
	Seed               int64   `json:"seed" mapstructure:"seed"`
	NominalVoltage     float64 `json:"nominalVoltage" mapstructure:"nominalVoltage"`
	SourceOhms         float64 `json:"sourceOhms" mapstructure:"sourceOhms"`
	TicksPerRev        float64 `json:"ticksPerRev" mapstructure:"ticksPerRev"`
	WheelCircumM       float64 `json:"wheelCircumM" mapstructure:"wheelCircumM"`
	HeaterOnBelowC     float64 `json:"heaterOnBelowC" mapstructure:"heaterOnBelowC"`
	SysLogChance       float64 `json:"sysLogChance" mapstructure:"sysLogChance"`
	AmbientTempC       float64 `json:"ambientTempC" mapstructure:"ambientTempC"`
	LoadFactor         float64 `json:"loadFactor" mapstructure:"loadFactor"`
	SurfaceResistance  float64 `json:"surfaceResistance" mapstructure:"surfaceResistance"`
	TransitionLogDepth int     `json:"transitionLogDepth" mapstructure:"transitionLogDepth"`
}

// SinkConfig selects and parameterizes the telemetry sinks.
type SinkConfig struct {
	Types        []string      `json:"types" mapstructure:"types"`
	BufferSize   int           `json:"bufferSize" mapstructure:"bufferSize"`
	DrainTimeout time.Duration `json:"drainTimeout" mapstructure:"drainTimeout"`
	AssetName    string        `json:"assetName" mapstructure:"assetName"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// tolerated; defaults then drive the whole run.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName("roversim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./roverlogs")

	viper.SetDefault("sim.controlHz", 50)
	viper.SetDefault("sim.telemetryHz", 10)
	viper.SetDefault("sim.driveDuty", 0.8)
	viper.SetDefault("sim.seed", 1)
	viper.SetDefault("sim.nominalVoltage", 12.0)
	viper.SetDefault("sim.sourceOhms", 0.25)
	viper.SetDefault("sim.ticksPerRev", 600.0)
	viper.SetDefault("sim.wheelCircumM", 0.47)
	viper.SetDefault("sim.heaterOnBelowC", 5.0)
	viper.SetDefault("sim.sysLogChance", 0.1)
	viper.SetDefault("sim.ambientTempC", 25.0)
	viper.SetDefault("sim.loadFactor", 1.0)
	viper.SetDefault("sim.surfaceResistance", 1.0)
	viper.SetDefault("sim.transitionLogDepth", 64)

	viper.SetDefault("motor.baseCurrentMA", 120.0)
	viper.SetDefault("motor.loadGainMA", 260.0)
	viper.SetDefault("motor.accelGainMA", 580.0)
	viper.SetDefault("motor.maxCurrentMA", 800.0)
	viper.SetDefault("motor.stallCurrentMA", 1500.0)
	viper.SetDefault("motor.stallThresholdMA", 1200.0)
	viper.SetDefault("motor.stallDebounceTicks", 2)
	viper.SetDefault("motor.ticksPerStep", 12.0)
	viper.SetDefault("motor.windingOhms", 5.0)
	viper.SetDefault("motor.heatRateCPerJoule", 0.8)
	viper.SetDefault("motor.coolingPerSecond", 0.15)
	viper.SetDefault("motor.variationPct", 10.0)

	viper.SetDefault("sink.types", []string{"log"})
	viper.SetDefault("sink.bufferSize", 1024)
	viper.SetDefault("sink.drainTimeout", "3s")
	viper.SetDefault("sink.assetName", "rover_1")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "rover-telemetry")
	viper.SetDefault("influx.bucket", "vehicle_telemetry")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "roversim")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetMotorConfig returns the motor model constants.
func GetMotorConfig() MotorConfig {
	var cfg MotorConfig
	_ = viper.UnmarshalKey("motor", &cfg)
	return cfg
}

// GetSimConfig returns the vehicle-level simulation settings.
func GetSimConfig() SimConfig {
	var cfg SimConfig
	_ = viper.UnmarshalKey("sim", &cfg)
	return cfg
}

// GetSinkConfig returns the telemetry sink settings.
func GetSinkConfig() SinkConfig {
	var cfg SinkConfig
	_ = viper.UnmarshalKey("sink", &cfg)
	return cfg
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
