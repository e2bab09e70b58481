package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

var (
	refreshType            string
	refreshScreenshotsOnly bool
	refreshNoScreenshots   bool
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the asset catalog from the photo library",
	Long: `Re-enumerate the photo library and rebuild the local catalog from
scratch. All assets start over as pending, including ones previously
confirmed as duplicates; the next sync re-checks them against the
server.

Examples:
  iims refresh
  iims refresh --type video
  iims refresh --screenshots-only`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshType, "type", "all", "Asset types to catalog (image, video, all)")
	refreshCmd.Flags().BoolVar(&refreshScreenshotsOnly, "screenshots-only", false, "Catalog only screenshots")
	refreshCmd.Flags().BoolVar(&refreshNoScreenshots, "no-screenshots", false, "Exclude screenshots")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if err := validateTypeFlag(refreshType); err != nil {
		return err
	}

	resp, err := refreshService.Execute(getContext(),
		buildRefreshRequest(cmd, refreshType, refreshScreenshotsOnly, refreshNoScreenshots))
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatSuccess(fmt.Sprintf("Catalog refreshed: %d assets (%d images, %d videos)",
		resp.Total, resp.Images, resp.Videos)))
	return nil
}
