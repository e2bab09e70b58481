package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

// resetFailedCmd represents the reset-failed command
var resetFailedCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Put failed assets back in the upload queue",
	Long: `Flip every failed asset back to pending and zero its retry count,
so the next sync attempts it again from scratch.`,
	RunE: runResetFailed,
}

func runResetFailed(cmd *cobra.Command, args []string) error {
	count, err := assetStore.ResetFailed(getContext())
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println(ui.FormatInfo("No failed assets to reset"))
		return nil
	}
	fmt.Println(ui.FormatSuccess(fmt.Sprintf("%d assets reset; run 'iims sync' to retry them", count)))
	return nil
}
