package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/config"
)

// ReindexCommand creates the reindex command
func ReindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Run a full backfill of the search index",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Wipe the index before backfilling",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDebug(c)
			return reindex(ctx, c.String("config"), c.Bool("clear"))
		},
	}
}

// reindex runs one synchronous backfill walk
func reindex(ctx context.Context, configPath string, clearFirst bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close platform store: %v\n", err)
		}
	}()

	gateway := newGateway(cfg, store, nil)
	if !gateway.Enabled() {
		return fmt.Errorf("search backend is disabled; activate it and configure engine.url first")
	}

	fmt.Println("Starting backfill...")
	if err := gateway.Reindex(ctx, clearFirst); err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	fmt.Println("Backfill finished.")
	return nil
}
