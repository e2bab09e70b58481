package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/services"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

var (
	syncType            string
	syncScreenshotsOnly bool
	syncNoScreenshots   bool
	syncResume          bool
	syncReset           bool
	syncDryRun          bool
	syncCheckOnly       bool
	syncNoProgress      bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the catalog and upload pending assets",
	Long: `Run the full pipeline: rebuild the asset catalog from the photo
library, check which assets the server already has, then export and
upload the rest. State is saved after every asset, so an interrupted
run resumes where it left off.

Examples:
  iims sync
  iims sync --type image --no-screenshots
  iims sync --resume
  iims sync --dry-run`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncType, "type", "all", "Asset types to sync (image, video, all)")
	syncCmd.Flags().BoolVar(&syncScreenshotsOnly, "screenshots-only", false, "Sync only screenshots")
	syncCmd.Flags().BoolVar(&syncNoScreenshots, "no-screenshots", false, "Exclude screenshots")
	syncCmd.Flags().BoolVar(&syncResume, "resume", false, "Skip the catalog refresh and continue from saved state")
	syncCmd.Flags().BoolVar(&syncReset, "reset", false, "Wipe saved state before starting")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what would be uploaded without transferring")
	syncCmd.Flags().BoolVar(&syncCheckOnly, "check-only", false, "Stop after the duplicate check")
	syncCmd.Flags().BoolVar(&syncNoProgress, "no-progress", false, "Disable the progress display")
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requireServer(); err != nil {
		return err
	}
	if err := validateTypeFlag(syncType); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(getContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if syncReset {
		if err := assetStore.Wipe(ctx); err != nil {
			return err
		}
		fmt.Println(ui.FormatInfo("Saved state wiped"))
	}

	// Sweep exports left behind by a crashed run
	if err := appHome.CleanScratch(); err != nil {
		log.Warn("failed to clean scratch directory", "error", err)
	}

	if !syncResume {
		resp, err := refreshService.Execute(ctx, buildRefreshRequest(cmd, syncType, syncScreenshotsOnly, syncNoScreenshots))
		if err != nil {
			return err
		}
		fmt.Println(ui.FormatInfo(fmt.Sprintf("Catalog refreshed: %d assets (%d images, %d videos)",
			resp.Total, resp.Images, resp.Videos)))
	}

	req := services.RunRequest{
		CheckOnly: syncCheckOnly,
		DryRun:    syncDryRun,
	}

	var summary *services.RunSummary
	var err error
	if syncNoProgress || syncDryRun {
		summary, err = syncService.Run(ctx, req)
	} else {
		summary, err = runWithProgress(ctx, req)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println(ui.FormatWarning("Sync cancelled"))
			return nil
		}
		return err
	}

	printSummary(summary)
	return nil
}

// runWithProgress drives the engine under a bubbletea progress bar.
// Interrupting the display cancels the run cooperatively; the engine
// finishes the asset in flight before stopping.
func runWithProgress(ctx context.Context, req services.RunRequest) (*services.RunSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.NewSyncProgress(cancel))

	req.Progress = func(ev domain.ProgressEvent) {
		p.Send(ui.ProgressEventMsg{
			Stage:   string(ev.Stage),
			Current: ev.Current,
			Total:   ev.Total,
			Detail:  ev.Detail,
		})
	}

	type result struct {
		summary *services.RunSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := syncService.Run(runCtx, req)
		done <- result{summary, err}
		p.Send(ui.ProgressDoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		// Display failure; the engine keeps running to completion
		cancel()
	}
	res := <-done
	return res.summary, res.err
}

func printSummary(summary *services.RunSummary) {
	fmt.Println()
	fmt.Println(ui.FormatTitle("Sync Summary"))
	fmt.Println(ui.RenderKeyValue("Eligible", fmt.Sprintf("%d", summary.Eligible)))
	fmt.Println(ui.RenderKeyValue("Already on server", fmt.Sprintf("%d", summary.Deduped)))
	fmt.Println(ui.RenderKeyValue("Uploaded", fmt.Sprintf("%d", summary.Uploaded)))
	fmt.Println(ui.RenderKeyValue("Failed", fmt.Sprintf("%d", summary.Failed)))

	switch {
	case summary.Cancelled:
		fmt.Println(ui.FormatWarning("Run cancelled; completed work is saved"))
	case summary.Failed > 0:
		fmt.Println(ui.FormatWarning(fmt.Sprintf("%d assets failed; see 'iims errors'", summary.Failed)))
	default:
		fmt.Println(ui.FormatSuccess("Sync complete"))
	}
}

func validateTypeFlag(value string) error {
	switch value {
	case "image", "video", "all":
		return nil
	}
	return fmt.Errorf("invalid --type %q (expected image, video or all)", value)
}

// buildRefreshRequest maps the shared refresh flags onto a request,
// falling back to the configured defaults when --type is not given
func buildRefreshRequest(cmd *cobra.Command, typ string, screenshotsOnly, noScreenshots bool) services.RefreshRequest {
	req := services.RefreshRequest{
		Images:             cfg.SyncImages,
		Videos:             cfg.SyncVideos,
		IncludeScreenshots: cfg.IncludeScreenshots,
	}
	if cmd.Flags().Changed("type") {
		req.Images = typ == "image" || typ == "all"
		req.Videos = typ == "video" || typ == "all"
	}
	if noScreenshots {
		req.IncludeScreenshots = false
	}
	if screenshotsOnly {
		req.ScreenshotsOnly = true
	}
	return req
}
