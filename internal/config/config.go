// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/catscale/internal/weight"
)

// Sensor backends.
const (
	BackendHX711  = "hx711"
	BackendSerial = "serial"
	BackendMock   = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// Device
	DeviceName string
	PetName    string
	LogLevel   string

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTCACert           string
	MQTTClientCert       string
	MQTTClientKey        string

	// Topics
	TopicBase string

	// Sensor
	SensorBackend       string
	LoadCell1DoutPin    string
	LoadCell1SckPin     string
	LoadCell2DoutPin    string
	LoadCell2SckPin     string
	SensorReadAverage   int
	SensorReadTimeoutMS int
	SerialPort          string
	SerialBaudRate      int

	// Detection
	CalibrationTimes          int
	CalibrationResetCount     int
	WeightPerGram             float64
	TriggerThresholdGrams     float64
	CalibrationThresholdGrams float64
	SessionDurationThreshold  int
	RecalibrateCron           string

	// Timing
	DetectIntervalMS      int // milliseconds
	CalibrationIntervalMS int // milliseconds

	// Web Server
	WebServerPort int
	HistoryDBPath string

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// globalConfig is set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config populated with the values the scale ships with.
// MQTT_BROKER has no default and must come from the file.
func Defaults() *Config {
	p := weight.DefaultParams()
	return &Config{
		DeviceName: "WeightMonitor",
		PetName:    "Mochi",
		LogLevel:   "info",

		MQTTClientIDProducer: "catscale-producer",
		MQTTClientIDConsole:  "catscale-console",
		MQTTClientIDWeb:      "catscale-web",
		MQTTClientIDDisplay:  "catscale-display",

		TopicBase: "catsensor",

		SensorBackend:       BackendHX711,
		LoadCell1DoutPin:    "GPIO32",
		LoadCell1SckPin:     "GPIO33",
		LoadCell2DoutPin:    "GPIO14",
		LoadCell2SckPin:     "GPIO12",
		SensorReadAverage:   3,
		SensorReadTimeoutMS: 500,
		SerialPort:          "/dev/ttyUSB0",
		SerialBaudRate:      115200,

		CalibrationTimes:          p.CalibrationTimes,
		CalibrationResetCount:     p.DriftResetCount,
		WeightPerGram:             p.ScaleFactor,
		TriggerThresholdGrams:     p.OccupancyThresholdGrams,
		CalibrationThresholdGrams: p.DriftThresholdGrams,
		SessionDurationThreshold:  p.SessionWindow,

		DetectIntervalMS:      1000,
		CalibrationIntervalMS: 100,

		WebServerPort: 8080,
		HistoryDBPath: "./catscale.db",

		DisplayI2CBus:         "",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func parsePositiveFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0, got %g", key, v)
	}
	return v, nil
}

// setValue sets a config value based on the key.
//
//nolint:gocyclo
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Device
	case "DEVICE_NAME":
		c.DeviceName = value
	case "PET_NAME":
		c.PetName = value
	case "LOG_LEVEL":
		if _, err := logrus.ParseLevel(value); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", value, err)
		}
		c.LogLevel = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CA_CERT":
		c.MQTTCACert = value
	case "MQTT_CLIENT_CERT":
		c.MQTTClientCert = value
	case "MQTT_CLIENT_KEY":
		c.MQTTClientKey = value

	// Topics
	case "TOPIC_BASE":
		c.TopicBase = strings.TrimSuffix(value, "/")

	// Sensor
	case "SENSOR_BACKEND":
		switch value {
		case BackendHX711, BackendSerial, BackendMock:
			c.SensorBackend = value
		default:
			return fmt.Errorf("SENSOR_BACKEND must be one of %s, %s, %s, got %q", BackendHX711, BackendSerial, BackendMock, value)
		}
	case "LOADCELL_1_DOUT_PIN":
		c.LoadCell1DoutPin = value
	case "LOADCELL_1_SCK_PIN":
		c.LoadCell1SckPin = value
	case "LOADCELL_2_DOUT_PIN":
		c.LoadCell2DoutPin = value
	case "LOADCELL_2_SCK_PIN":
		c.LoadCell2SckPin = value
	case "SENSOR_READ_AVERAGE":
		c.SensorReadAverage, err = parseInt(key, value, 1, 64)
	case "SENSOR_READ_TIMEOUT_MS":
		c.SensorReadTimeoutMS, err = parseInt(key, value, 1, 60000)
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 1, 4000000)

	// Detection
	case "CALIBRATION_TIMES":
		c.CalibrationTimes, err = parseInt(key, value, 1, 1000)
	case "CALIBRATION_RESET_COUNT":
		c.CalibrationResetCount, err = parseInt(key, value, 0, 1000)
	case "WEIGHT_PER_GRAM":
		c.WeightPerGram, err = parsePositiveFloat(key, value)
	case "TRIGGER_THRESHOLD_GRAMS":
		c.TriggerThresholdGrams, err = parsePositiveFloat(key, value)
	case "CALIBRATION_THRESHOLD_GRAMS":
		c.CalibrationThresholdGrams, err = parsePositiveFloat(key, value)
	case "SESSION_DURATION_THRESHOLD":
		c.SessionDurationThreshold, err = parseInt(key, value, weight.MinSamples, 10000)
	case "RECALIBRATE_CRON":
		c.RecalibrateCron = value

	// Timing
	case "DETECT_INTERVAL_MS":
		c.DetectIntervalMS, err = parseInt(key, value, 1, 3600000)
	case "CALIBRATION_INTERVAL_MS":
		c.CalibrationIntervalMS, err = parseInt(key, value, 1, 3600000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "HISTORY_DB_PATH":
		c.HistoryDBPath = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1, 3600000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.DeviceName == "" {
		return fmt.Errorf("DEVICE_NAME is required")
	}
	if c.TopicBase == "" {
		return fmt.Errorf("TOPIC_BASE is required")
	}
	if (c.MQTTClientCert == "") != (c.MQTTClientKey == "") {
		return fmt.Errorf("MQTT_CLIENT_CERT and MQTT_CLIENT_KEY must be set together")
	}
	if c.SensorBackend == BackendSerial && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required for the serial backend")
	}
	if err := c.WeightParams().Validate(); err != nil {
		return fmt.Errorf("detection settings: %w", err)
	}
	return nil
}

// WeightParams returns the detector tuning constants.
func (c *Config) WeightParams() weight.Params {
	return weight.Params{
		CalibrationTimes:        c.CalibrationTimes,
		DriftResetCount:         c.CalibrationResetCount,
		ScaleFactor:             c.WeightPerGram,
		OccupancyThresholdGrams: c.TriggerThresholdGrams,
		DriftThresholdGrams:     c.CalibrationThresholdGrams,
		SessionWindow:           c.SessionDurationThreshold,
	}
}

// LogrusFields returns the settings worth logging at startup.
func (c *Config) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"device":            c.DeviceName,
		"broker":            c.MQTTBroker,
		"topicBase":         c.TopicBase,
		"sensorBackend":     c.SensorBackend,
		"calibrationTimes":  c.CalibrationTimes,
		"resetCount":        c.CalibrationResetCount,
		"weightPerGram":     c.WeightPerGram,
		"triggerGrams":      c.TriggerThresholdGrams,
		"calibrationGrams":  c.CalibrationThresholdGrams,
		"sessionDuration":   c.SessionDurationThreshold,
		"detectIntervalMs":  c.DetectIntervalMS,
		"calibIntervalMs":   c.CalibrationIntervalMS,
		"recalibrationCron": c.RecalibrateCron,
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
