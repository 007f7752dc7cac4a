// Package config loads the ampserver configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	monoprice "github.com/abates/monoprice-zones"
	"github.com/abates/monoprice-zones/logging"
)

const (
	EnvPort       = "MONOPRICE_PORT"
	EnvHTTPAddr   = "MONOPRICE_HTTP_ADDR"
	EnvMQTTBroker = "MONOPRICE_MQTT_BROKER"
)

type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	HTTP     HTTPConfig     `yaml:"http"`
	Sources  map[int]string `yaml:"sources"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Simulate SimulateConfig `yaml:"simulate"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	// ReadTimeout bounds a single read on the port.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// Timeout bounds a whole request/response exchange.
	Timeout time.Duration `yaml:"timeout"`
	Verbose bool          `yaml:"verbose"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MQTTConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Broker       string        `yaml:"broker"`
	ClientID     string        `yaml:"client_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Prefix       string        `yaml:"prefix"`
	QoS          int           `yaml:"qos"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SimulateConfig replaces the serial port with an in-memory amplifier chain.
type SimulateConfig struct {
	Enabled bool `yaml:"enabled"`
	Amps    int  `yaml:"amps"`
}

// Load reads path on top of the defaults and validates the result. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Read is Load without validation, for callers that layer more overrides
// (command line flags) on top before calling Validate.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			Baud:        monoprice.DefaultBaud,
			ReadTimeout: monoprice.DefaultReadTimeout,
			Timeout:     monoprice.DefaultTimeout,
		},
		HTTP: HTTPConfig{
			Addr:         "127.0.0.1:8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		MQTT: MQTTConfig{
			Broker:       "tcp://localhost:1883",
			ClientID:     "ampserver",
			Prefix:       "monoprice",
			QoS:          1,
			PollInterval: 10 * time.Second,
		},
		Simulate: SimulateConfig{
			Amps: 1,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !c.Simulate.Enabled && c.Serial.Port == "" {
		errs = append(errs, "serial.port is required")
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, "serial.baud must be positive")
	}
	if c.Serial.Timeout <= 0 {
		errs = append(errs, "serial.timeout must be positive")
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, "serial.read_timeout must be positive")
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if _, err := monoprice.NewSources(c.Sources); err != nil {
		errs = append(errs, fmt.Sprintf("sources: %v", err))
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a level", c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, "logging.format must be console or json")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.PollInterval <= 0 {
			errs = append(errs, "mqtt.poll_interval must be positive")
		}
		if strings.Trim(c.MQTT.Prefix, "/") == "" {
			errs = append(errs, "mqtt.prefix is required")
		}
	}
	if c.Simulate.Enabled && (c.Simulate.Amps < 1 || c.Simulate.Amps > monoprice.MaxAmps) {
		errs = append(errs, fmt.Sprintf("simulate.amps must be between 1 and %d", monoprice.MaxAmps))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SourceLabels builds the label map for the amplifier.
func (c *Config) SourceLabels() (*monoprice.Sources, error) {
	return monoprice.NewSources(c.Sources)
}
