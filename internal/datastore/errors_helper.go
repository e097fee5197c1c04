package datastore

import (
	"github.com/tphakala/runcat/internal/errors"
)

// dbError wraps a database error with datastore component and database category.
func dbError(err error, operation, priority string, keyValues ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Priority(priority)

	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			builder = builder.Context(key, keyValues[i+1])
		}
	}

	return builder.Build()
}
