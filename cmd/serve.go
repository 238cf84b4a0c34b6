package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/api"
	"github.com/assistify/chatpal-search/pkg/config"
	"github.com/assistify/chatpal-search/pkg/platform"
	"github.com/assistify/chatpal-search/pkg/realtime"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search gateway daemon",
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDebug(c)
			return serve(ctx, c.String("config"))
		},
	}
}

// serve runs the gateway, the HTTP API and the config watcher until a
// shutdown signal arrives.
func serve(ctx context.Context, configPath string) error {
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

	hub := realtime.NewFirehoseHub(64)

	serveCtx, serveCancel := context.WithCancel(ctx)
	defer serveCancel()

	gateway := newGateway(cfg, store, hub)
	if gateway.Enabled() {
		pingCtx, pingCancel := context.WithTimeout(serveCtx, 5*time.Second)
		if err := gateway.Ping(pingCtx); err != nil {
			log.Printf("Warning: search engine not reachable at %s: %v", cfg.Engine.URL, err)
		}
		pingCancel()
		gateway.Start(serveCtx)
	} else {
		log.Printf("Search backend disabled; serving API without indexing")
	}

	apiServer := api.NewServer(gateway, store, hub, cfg.AdminKey)
	apiServer.SetApplyConfig(func(_ context.Context, newCfg *config.Config) error {
		return applyConfig(serveCtx, configPath, newCfg, apiServer, store, hub)
	})

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.CorsMiddleware(mux),
	}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Signal handling - includes SIGHUP for manual reload
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	fmt.Println("Gateway started. Press Ctrl+C to stop, send SIGHUP to reload, or modify config file for automatic reload.")

	// Set up filesystem watcher for config file
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Printf("Warning: failed to close config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			log.Printf("Warning: failed to watch config file %s: %v", configPath, err)
		} else {
			log.Printf("Watching config file for changes: %s", configPath)
		}
	}

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				log.Println("Received SIGHUP, reloading configuration...")
				if err := reloadConfiguration(serveCtx, configPath, apiServer, store, hub); err != nil {
					log.Printf("Failed to reload configuration: %v", err)
				} else {
					log.Println("Configuration reloaded successfully")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				apiServer.Gateway().Stop()
				serveCancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.Printf("HTTP shutdown error: %v", err)
				}
				return nil
			}
		case event, ok := <-watchEvents:
			if !ok {
				continue
			}
			// Editors often replace the file wholesale, so rename/remove
			// count as changes too.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				log.Printf("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					time.Sleep(200 * time.Millisecond)
					if _, err := os.Stat(configPath); os.IsNotExist(err) {
						log.Printf("Config file was removed and not replaced, skipping reload")
						continue
					}
					if err := watcher.Add(configPath); err != nil {
						log.Printf("Warning: failed to re-add config file to watcher: %v", err)
					}
				} else {
					time.Sleep(100 * time.Millisecond)
				}

				if err := reloadConfiguration(serveCtx, configPath, apiServer, store, hub); err != nil {
					log.Printf("Failed to reload configuration after file change: %v", err)
				} else {
					log.Println("Configuration reloaded successfully after file change")
				}
			}
		case err, ok := <-watchErrors:
			if !ok {
				continue
			}
			log.Printf("Config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration reloads the config file and swaps the gateway.
func reloadConfiguration(ctx context.Context, configPath string, apiServer *api.Server, store *platform.SQLiteStore, hub *realtime.FirehoseHub) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}

	// An activated reload without an engine URL never validates, but a
	// deactivated one with an empty URL does; treat it as a transient empty
	// update and keep the current gateway rather than tearing it down.
	if newCfg.Engine.URL == "" {
		log.Printf("Reloaded config has no engine URL, keeping current gateway")
		return nil
	}

	return swapGateway(ctx, newCfg, apiServer, store, hub)
}

// applyConfig handles a config update from the admin API: validate happened
// in the handler, so stop the old gateway, bring up the new one, persist.
func applyConfig(ctx context.Context, configPath string, newCfg *config.Config, apiServer *api.Server, store *platform.SQLiteStore, hub *realtime.FirehoseHub) error {
	if err := swapGateway(ctx, newCfg, apiServer, store, hub); err != nil {
		return err
	}
	if err := newCfg.SaveConfig(configPath); err != nil {
		return fmt.Errorf("persisting config: %w", err)
	}
	return nil
}

// swapGateway stops the current gateway and atomically swaps in one built
// from the new config. The old config is never mutated; concurrent queries
// finish against the instance they started with.
func swapGateway(ctx context.Context, newCfg *config.Config, apiServer *api.Server, store *platform.SQLiteStore, hub *realtime.FirehoseHub) error {
	apiServer.Gateway().Stop()

	gateway := newGateway(newCfg, store, hub)
	if gateway.Enabled() {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := gateway.Ping(pingCtx)
		pingCancel()
		if err != nil {
			return fmt.Errorf("engine not reachable at %s: %w", newCfg.Engine.URL, err)
		}
	}

	apiServer.SetGateway(gateway)
	gateway.Start(ctx)
	return nil
}
