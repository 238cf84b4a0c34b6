package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/chatpal"
	"github.com/assistify/chatpal-search/pkg/config"
	"github.com/assistify/chatpal-search/pkg/platform"
	"github.com/assistify/chatpal-search/pkg/realtime"

	cplog "github.com/assistify/chatpal-search/pkg/log"
)

// applyDebug enables debug logging when the global --debug flag is set.
func applyDebug(c *cli.Command) {
	if c.Bool("debug") {
		cplog.SetGlobalDebug(true)
	}
}

// openStore opens the platform SQLite database under the configured storage
// directory.
func openStore(cfg *config.Config) (*platform.SQLiteStore, error) {
	dbPath := filepath.Join(cfg.StorageDir, "platform.db")
	store, err := platform.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening platform store: %w", err)
	}
	return store, nil
}

// newGateway wires a gateway from a config snapshot. hub may be nil for
// one-shot commands.
func newGateway(cfg *config.Config, store platform.Store, hub *realtime.FirehoseHub) *chatpal.Gateway {
	engine := chatpal.NewClient(cfg.Engine)
	return chatpal.NewGateway(cfg, engine, store, hub)
}
