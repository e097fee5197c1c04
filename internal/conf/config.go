// Package conf loads and validates runcat settings.
//
// Settings are resolved once, from defaults, an optional YAML file, an
// optional .env file and RUNCAT_* environment variables, into a typed
// Settings value that is passed explicitly to every component.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// Database types
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// Matcher variants
const (
	MatcherDeclarative = "declarative"
	MatcherVectorized  = "vectorized"
)

// Spectral stop policies
const (
	StopPolicyPrevious = "previous"
	StopPolicyFailing  = "failing"
)

// Settings contains all configuration options for runcat.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Logging     logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Database    DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Association AssociationSettings  `mapstructure:"association" yaml:"association"`
	Spectral    SpectralSettings     `mapstructure:"spectral" yaml:"spectral"`
	Parset      ParsetSettings       `mapstructure:"parset" yaml:"parset"`
	Metrics     MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type               string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SQLite             SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL              MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
	SlowQueryThreshold time.Duration  `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold"`
}

// SQLiteSettings contains settings for the SQLite store.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MySQLSettings contains settings for the MySQL store.
type MySQLSettings struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	Database     string        `mapstructure:"database" yaml:"database"`
	MaxOpenConns int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// AssociationSettings controls candidate generation and matching.
type AssociationSettings struct {
	Matcher           string  `mapstructure:"matcher" yaml:"matcher"`                       // declarative or vectorized
	PointThreshold    float64 `mapstructure:"point_threshold" yaml:"point_threshold"`       // de Ruiter radius for point sources
	ExtendedThreshold float64 `mapstructure:"extended_threshold" yaml:"extended_threshold"` // de Ruiter radius for extended sources
	ZoneWidth         float64 `mapstructure:"zone_width" yaml:"zone_width"`                 // declination zone height, degrees
	MinWindow         float64 `mapstructure:"min_window" yaml:"min_window"`                 // minimum declination half-window, radians
	BatchSize         int     `mapstructure:"batch_size" yaml:"batch_size"`                 // rows per bulk write
}

// SpectralSettings controls polynomial order selection.
type SpectralSettings struct {
	MaxOrder       int     `mapstructure:"max_order" yaml:"max_order"`
	ChiSquareRatio float64 `mapstructure:"chi_square_ratio" yaml:"chi_square_ratio"`
	StopPolicy     string  `mapstructure:"stop_policy" yaml:"stop_policy"` // previous or failing
}

// ParsetSettings locates per-image band/frequency descriptors.
type ParsetSettings struct {
	Dir      string        `mapstructure:"dir" yaml:"dir"` // empty: read descriptors from the images table
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// Load resolves settings from defaults, configPath (optional), .env and the
// environment. The returned settings are validated; every failure is a
// configuration error.
func Load(configPath string) (*Settings, error) {
	v := viper.New()

	if err := loadDotEnv(); err != nil {
		return nil, errors.ConfigError(err, ".env")
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, errors.ConfigError(err, "environment")
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, errors.ConfigError(err, "config_file")
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.ConfigError(fmt.Errorf("error unmarshaling config into struct: %w", err), "config_file")
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.ConfigError(fmt.Errorf("error validating settings: %w", err), "settings")
	}

	return settings, nil
}

// Default returns validated default settings.
func Default() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	// defaults always decode
	_ = v.Unmarshal(settings)
	return settings
}

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

// readConfigFile reads an explicit file or searches the default locations.
// A missing file in the default locations is not an error.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		return nil
	}

	v.SetConfigName("runcat")
	v.SetConfigType("yaml")
	for _, path := range defaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "runcat"))
	}
	return append(paths, "/etc/runcat")
}
