package cmd

import (
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/config"
)

// ConfigCommand creates the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the active configuration",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showConfig(c.String("config"))
		},
	}
}

// showConfig prints the effective configuration (file values merged with defaults)
func showConfig(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Printf("# %s\n%s", configPath, data)
	return nil
}
