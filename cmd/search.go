package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/chatpal"
	"github.com/assistify/chatpal-search/pkg/config"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User id to search as (determines room visibility)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Search type: message or all",
				Value: chatpal.SearchTypeMessage,
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page",
				Value: 1,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDebug(c)
			return searchIndex(ctx, c.String("config"), c.String("query"), c.String("user"), c.String("type"), c.Int("page"))
		},
	}
}

// searchIndex runs a one-shot search against the configured engine
func searchIndex(ctx context.Context, configPath, query, userID, searchType string, page int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if userID == "" {
		return fmt.Errorf("a --user id is required to resolve room visibility")
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
	result, err := gateway.Search(ctx, userID, query, page, searchType)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if !result.Enabled {
		fmt.Println("Search backend is disabled.")
		return nil
	}

	if result.Users != nil {
		fmt.Printf("Found %d users:\n", result.Users.NumFound)
		for i, hit := range result.Users.Docs {
			name := hit.ID
			if hit.UserData != nil {
				name = fmt.Sprintf("%s (%s)", hit.UserData.Username, hit.UserData.Name)
			}
			fmt.Printf("%d. %s\n", i+1, name)
		}
		fmt.Println()
	}

	if result.Messages != nil {
		fmt.Printf("Found %d messages (page %d):\n", result.Messages.NumFound, page)
		for i, hit := range result.Messages.Docs {
			author := hit.User
			if hit.UserData != nil {
				author = hit.UserData.Username
			}
			room := hit.Room
			if hit.Subscription != nil && hit.Subscription.RoomName != "" {
				room = hit.Subscription.RoomName
			}
			fmt.Printf("%d. [%s %s] #%s @%s: %s\n", i+1, hit.Date, hit.Time, room, author, hit.Text)
		}
	}

	return nil
}
