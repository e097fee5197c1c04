package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "RUNCAT_DEBUG", validateEnvBool},
		{"logging.default_level", "RUNCAT_LOG_LEVEL", validateEnvLevel},

		{"database.type", "RUNCAT_DATABASE_TYPE", validateEnvOneOf(DatabaseSQLite, DatabaseMySQL)},
		{"database.sqlite.path", "RUNCAT_SQLITE_PATH", nil},
		{"database.mysql.host", "RUNCAT_MYSQL_HOST", nil},
		{"database.mysql.port", "RUNCAT_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "RUNCAT_MYSQL_USERNAME", nil},
		{"database.mysql.password", "RUNCAT_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "RUNCAT_MYSQL_DATABASE", nil},

		{"association.matcher", "RUNCAT_MATCHER", validateEnvOneOf(MatcherDeclarative, MatcherVectorized)},
		{"association.point_threshold", "RUNCAT_POINT_THRESHOLD", validateEnvPositiveFloat},
		{"association.extended_threshold", "RUNCAT_EXTENDED_THRESHOLD", validateEnvPositiveFloat},

		{"spectral.stop_policy", "RUNCAT_STOP_POLICY", validateEnvOneOf(StopPolicyPrevious, StopPolicyFailing)},

		{"parset.dir", "RUNCAT_PARSET_DIR", nil},
		{"metrics.enabled", "RUNCAT_METRICS_ENABLED", validateEnvBool},
		{"metrics.listen", "RUNCAT_METRICS_LISTEN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvLevel(value string) error {
	return validateEnvOneOf("trace", "debug", "info", "warn", "error")(value)
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %g", f)
	}
	return nil
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}
