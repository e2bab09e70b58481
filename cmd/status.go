package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync progress counters",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := getContext()

	stats, err := assetStore.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatTitle("Sync Status"))
	fmt.Println()

	table := ui.NewTable([]ui.TableColumn{
		{Header: "Status", Width: 10},
		{Header: "Count", Width: 6},
	})
	table.AddRow([]string{"pending", fmt.Sprintf("%d", stats.Pending)})
	table.AddRow([]string{"completed", fmt.Sprintf("%d", stats.Completed)})
	table.AddRow([]string{"failed", fmt.Sprintf("%d", stats.Failed)})
	table.AddRow([]string{"total", fmt.Sprintf("%d", stats.Total)})
	fmt.Print(table.Render())
	fmt.Println()

	if startedAt, err := assetStore.GetMeta(ctx, "started_at"); err == nil && startedAt != "" {
		fmt.Println(ui.RenderKeyValue("Catalog refreshed", startedAt))
	}

	if stats.Total == 0 {
		fmt.Println(ui.FormatInfo("Catalog is empty; run 'iims refresh' or 'iims sync'"))
	} else if stats.Pending == 0 && stats.Failed == 0 {
		fmt.Println(ui.FormatSuccess("All assets synced"))
	}
	return nil
}
