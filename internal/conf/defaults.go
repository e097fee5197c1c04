package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with validation and tests.
const (
	DefaultPointThreshold    = 3.717
	DefaultExtendedThreshold = 5.68
	DefaultZoneWidth         = 1.0
	DefaultMinWindow         = 0.025
	DefaultBatchSize         = 1000
	DefaultMaxOrder          = 6
	DefaultChiSquareRatio    = 3.0
)

// SpectralOrderCeiling is the highest polynomial order a spectral fit may use.
const SpectralOrderCeiling = 6

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "UTC")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/runcat.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.sqlite.path", "runcat.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "runcat")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "runcat")
	v.SetDefault("database.mysql.max_open_conns", 10)
	v.SetDefault("database.mysql.max_idle_conns", 5)
	v.SetDefault("database.mysql.conn_max_lifetime", time.Hour)
	v.SetDefault("database.slow_query_threshold", 500*time.Millisecond)

	v.SetDefault("association.matcher", MatcherDeclarative)
	v.SetDefault("association.point_threshold", DefaultPointThreshold)
	v.SetDefault("association.extended_threshold", DefaultExtendedThreshold)
	v.SetDefault("association.zone_width", DefaultZoneWidth)
	v.SetDefault("association.min_window", DefaultMinWindow)
	v.SetDefault("association.batch_size", DefaultBatchSize)

	v.SetDefault("spectral.max_order", DefaultMaxOrder)
	v.SetDefault("spectral.chi_square_ratio", DefaultChiSquareRatio)
	v.SetDefault("spectral.stop_policy", StopPolicyPrevious)

	v.SetDefault("parset.dir", "")
	v.SetDefault("parset.cache_ttl", 10*time.Minute)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9112")
}
