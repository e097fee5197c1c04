package conf

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateLoggingSettings,
		validateDatabaseSettings,
		validateAssociationSettings,
		validateSpectralSettings,
		validateMetricsSettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	switch s.Logging.DefaultLevel {
	case "", "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.default_level %q is not a log level", s.Logging.DefaultLevel)
	}
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must be set")
		}
		if db.MySQL.Port < 1 || db.MySQL.Port > 65535 {
			return fmt.Errorf("database.mysql.port must be between 1 and 65535, got %d", db.MySQL.Port)
		}
	default:
		return fmt.Errorf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, db.Type)
	}
	return nil
}

func validateAssociationSettings(s *Settings) error {
	a := &s.Association
	var problems []string

	if a.Matcher != MatcherDeclarative && a.Matcher != MatcherVectorized {
		problems = append(problems, fmt.Sprintf("association.matcher must be %q or %q, got %q", MatcherDeclarative, MatcherVectorized, a.Matcher))
	}
	if !positive(a.PointThreshold) {
		problems = append(problems, "association.point_threshold must be positive")
	}
	if !positive(a.ExtendedThreshold) {
		problems = append(problems, "association.extended_threshold must be positive")
	}
	if !positive(a.ZoneWidth) || a.ZoneWidth > 180 {
		problems = append(problems, "association.zone_width must be in (0, 180] degrees")
	}
	if !positive(a.MinWindow) || a.MinWindow > math.Pi/2 {
		problems = append(problems, "association.min_window must be in (0, pi/2] radians")
	}
	if a.BatchSize < 1 {
		problems = append(problems, "association.batch_size must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func validateSpectralSettings(s *Settings) error {
	sp := &s.Spectral
	if sp.MaxOrder < 0 || sp.MaxOrder > SpectralOrderCeiling {
		return fmt.Errorf("spectral.max_order must be between 0 and %d, got %d", SpectralOrderCeiling, sp.MaxOrder)
	}
	if !positive(sp.ChiSquareRatio) || sp.ChiSquareRatio <= 1 {
		return fmt.Errorf("spectral.chi_square_ratio must be greater than 1")
	}
	if sp.StopPolicy != StopPolicyPrevious && sp.StopPolicy != StopPolicyFailing {
		return fmt.Errorf("spectral.stop_policy must be %q or %q, got %q", StopPolicyPrevious, StopPolicyFailing, sp.StopPolicy)
	}
	return nil
}

func validateMetricsSettings(s *Settings) error {
	if s.Metrics.Enabled && s.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
