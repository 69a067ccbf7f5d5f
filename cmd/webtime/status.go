package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/webtime/internal/config"
	"github.com/goodtune/webtime/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's usage from the local tracking daemon",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://%s/api/v1/status", cfg.Tracker.BridgeAddress)

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("tracker not reachable at %s (is 'webtime track' running?): %w", cfg.Tracker.BridgeAddress, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	var report struct {
		CurrentAppName    *string                      `json:"currentAppName"`
		DeviceID          string                       `json:"deviceId"`
		TodayTotalSeconds int64                        `json:"todayTotalSeconds"`
		TodayApps         map[string]storage.UsageCell `json:"todayApps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	faint := color.New(color.Faint)

	bold.Println("webtime status")
	faint.Printf("device: %s\n\n", report.DeviceID)

	if report.CurrentAppName != nil {
		fmt.Print("currently tracking: ")
		green.Println(*report.CurrentAppName)
	} else {
		faint.Println("not currently tracking")
	}

	fmt.Printf("\ntoday: %s total\n", formatSeconds(report.TodayTotalSeconds))

	apps := make([]string, 0, len(report.TodayApps))
	for app := range report.TodayApps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		return report.TodayApps[apps[i]].TotalSeconds > report.TodayApps[apps[j]].TotalSeconds
	})

	for _, app := range apps {
		fmt.Printf("  %-30s %s\n", app, formatSeconds(report.TodayApps[app].TotalSeconds))
	}

	return nil
}

func formatSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
