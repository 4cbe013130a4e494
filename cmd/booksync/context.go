package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"booksync/internal/config"
	"booksync/internal/logging"
	"booksync/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	storeMu sync.Mutex
	store   *store.Store
	lock    *flock.Flock
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// loggerFor returns the process logger. Log retention runs once, on first use.
func (c *commandContext) loggerFor() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, "booksync.log")},
		})
		c.logger = logger
	})
	return c.logger
}

// openStore opens the result store. With exclusive set, the data directory
// lock is taken first and runs left marked running by a dead process are
// failed.
func (c *commandContext) openStore(ctx context.Context, exclusive bool) (*store.Store, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if exclusive {
		lock := flock.New(filepath.Join(cfg.Paths.DataDir, "booksync.lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire data directory lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("another booksync run holds %s", lock.Path())
		}
		c.lock = lock
	}
	st, err := store.Open(cfg)
	if err != nil {
		c.releaseLock()
		return nil, err
	}
	if exclusive {
		if n, err := st.MarkInterrupted(ctx); err != nil {
			c.loggerFor().Warn("failed to mark interrupted runs", logging.Error(err))
		} else if n > 0 {
			c.loggerFor().Info("marked interrupted runs as failed", logging.Int64("count", n))
		}
	}
	c.store = st
	return st, nil
}

func (c *commandContext) releaseLock() {
	if c.lock == nil {
		return
	}
	_ = c.lock.Unlock()
	c.lock = nil
}

func (c *commandContext) close() {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
	c.releaseLock()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
