package metrics

import (
	"time"

	"codeberg.org/mutker/plantsim/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/plantsim/archive.db"
	defaultBackupDir    = "/var/lib/plantsim/backups"
	defaultBatchSize    = 50
	defaultBatchTimeout = 5 * time.Second

	// Rows kept across failed flushes, in batches.
	maxBufferedBatches = 10
)

type Config struct {
	Enabled   bool
	DBPath    string
	BackupDir string
	// BatchSize is the number of rows buffered before a flush.
	BatchSize int
	// BatchTimeout flushes a partial batch after this long. Zero disables
	// timed flushing.
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		DBPath:       defaultDBPath,
		BackupDir:    defaultBackupDir,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout string
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout.String(),
		})
	}

	return nil
}
