package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/assistify/chatpal-search/pkg/chatpal"
	"github.com/assistify/chatpal-search/pkg/config"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	numberStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDebug(c)
			return showStats(ctx, c.String("config"))
		},
	}
}

// showStats fetches and renders the index statistics
func showStats(ctx context.Context, configPath string) error {
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
	stats, err := gateway.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("fetching statistics: %w", err)
	}

	fmt.Println(titleStyle.Render("Chatpal Search Statistics"))

	if !stats.Enabled {
		fmt.Println(noDataStyle.Render("Search backend is disabled."))
		return nil
	}

	fmt.Printf("%s %s\n", labelStyle.Render("Messages:"), numberStyle.Render(fmt.Sprintf("%d", stats.Numbers.Messages)))
	fmt.Printf("%s %s\n", labelStyle.Render("Users:"), numberStyle.Render(fmt.Sprintf("%d", stats.Numbers.Users)))
	if stats.Running {
		fmt.Printf("%s %s\n", labelStyle.Render("Backfill:"), numberStyle.Render("running"))
	}

	if len(stats.Chart) > 0 {
		fmt.Println()
		fmt.Println(labelStyle.Render("Messages indexed per day:"))
		renderChart(stats.Chart)
	}

	return nil
}

// renderChart prints a simple horizontal bar per day, scaled to the busiest one
func renderChart(chart []chatpal.ChartPoint) {
	max := 0
	for _, p := range chart {
		if p.Count > max {
			max = p.Count
		}
	}
	if max == 0 {
		fmt.Println(noDataStyle.Render("No messages in the last 30 days."))
		return
	}

	const width = 40
	for _, p := range chart {
		bar := strings.Repeat("█", p.Count*width/max)
		date := p.Date
		if len(date) >= 10 {
			date = date[:10]
		}
		fmt.Printf("%s %s %d\n", date, barStyle.Render(bar), p.Count)
	}
}
