package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

// dedupCmd represents the dedup command
var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Mark assets the server already has, without uploading",
	Long: `Ask the server which pending assets it already has and mark the
matches as completed. Nothing is uploaded; a later sync only transfers
what the server is actually missing.`,
	RunE: runDedup,
}

func runDedup(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}

	summary, err := syncService.DedupOnly(getContext(), nil)
	if err != nil {
		return err
	}

	fmt.Println(ui.RenderKeyValue("Eligible", fmt.Sprintf("%d", summary.Eligible)))
	fmt.Println(ui.RenderKeyValue("Already on server", fmt.Sprintf("%d", summary.Deduped)))
	remaining := summary.Eligible - summary.Deduped
	if remaining > 0 {
		fmt.Println(ui.FormatInfo(fmt.Sprintf("%d assets still need uploading; run 'iims sync'", remaining)))
	} else {
		fmt.Println(ui.FormatSuccess("Nothing to upload"))
	}
	return nil
}
