package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"knexport/pkg/status"
	"knexport/pkg/ui"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress and summary of the last export",
	Long: `Show what the last export left behind: its progress line, final summary,
the last item it finished and the endpoint it used. Works while an export is
running in another terminal.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	path, err := statusPath()
	if err != nil {
		return err
	}
	snap, err := status.Load(path)
	if err != nil {
		return err
	}
	if snap == nil {
		ui.PrintWarning("No export has run yet")
		return nil
	}

	if statusJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		ui.PrintLine(string(data))
		return nil
	}
	printSnapshot(snap)
	return nil
}

func printSnapshot(snap *status.Snapshot) {
	if snap.RunID != "" {
		ui.PrintInfo("Run", snap.RunID)
	}
	ui.PrintInfo("Updated", snap.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if e := snap.Endpoint; e != nil {
		ui.PrintInfo("Endpoint", e.BaseURL)
		ui.PrintInfo("Child", e.ChildID)
	}
	if m := snap.Marker; m != nil {
		ui.PrintInfo("Last item", fmt.Sprintf("%s %d/%s (id %s)", m.Kind, m.Index, m.Total, m.ID))
	}
	if snap.Progress != "" {
		ui.PrintLine("")
		ui.PrintStatusLine(snap.Progress)
	}
	if snap.Final != "" {
		ui.PrintLine("")
		printBlock(snap.Final)
	}
}

// printBlock prints a summary with its headline colored by mark.
func printBlock(text string) {
	for i, line := range strings.Split(text, "\n") {
		if i == 0 {
			ui.PrintStatusLine(line)
			continue
		}
		ui.PrintLine(line)
	}
}
