// Package config holds the application context shared by the CLI commands:
// settings, logger, build metadata and, once opened, the store.
package config

import (
	"github.com/tphakala/runcat/internal/buildinfo"
	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
	"github.com/tphakala/runcat/internal/observability"
)

// Context holds the overall application state.
type Context struct {
	ConfigPath string
	Settings   *conf.Settings
	Build      *buildinfo.Context

	Logger  logger.Logger
	central *logger.CentralLogger

	Manager datastore.Manager
	Store   *repository.Store
	Metrics *observability.Metrics
}

// NewContext creates a context carrying build metadata. Settings are loaded
// by Init.
func NewContext(build *buildinfo.Context) *Context {
	return &Context{
		Build:  build,
		Logger: logger.NewSlogLogger(nil, logger.LogLevelInfo, nil),
	}
}

// Init loads settings from ConfigPath and sets up logging and metrics.
// debug raises the default log level.
func (c *Context) Init(debug bool) error {
	settings, err := conf.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	if debug {
		settings.Debug = true
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	c.Settings = settings

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return errors.ConfigError(err, "logging")
	}
	c.central = central
	c.Logger = central.Root()

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	c.Metrics = m
	return nil
}

// OpenStore opens the configured database. migrate creates or updates the
// schema first.
func (c *Context) OpenStore(migrate bool) error {
	manager, err := datastore.Open(&c.Settings.Database, c.Logger.Module("datastore"))
	if err != nil {
		return err
	}
	if migrate {
		if err := manager.Initialize(); err != nil {
			_ = manager.Close()
			return err
		}
	}
	c.Manager = manager
	c.Store = repository.NewStore(manager.DB(), manager.IsMySQL())
	return nil
}

// Close releases the store and flushes logs.
func (c *Context) Close() error {
	var errs []error
	if c.Manager != nil {
		errs = append(errs, c.Manager.Close())
		c.Manager = nil
	}
	if c.central != nil {
		errs = append(errs, c.central.Close())
		c.central = nil
	}
	return errors.Join(errs...)
}
