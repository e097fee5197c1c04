// Package testutil provides SQLite-backed fixtures for tests that need a
// real catalog database: a migrated temp-dir store, a silent logger and
// fluent builders for images and detections.
package testutil
