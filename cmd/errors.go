package cmd

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

var (
	errorsBrowse bool
	errorsCopy   bool
)

// errorsCmd represents the errors command
var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show assets that failed to sync",
	Long: `List assets whose export or upload failed, with the recorded error
and retry count.

Examples:
  iims errors
  iims errors --browse
  iims errors --copy`,
	RunE: runErrors,
}

func init() {
	errorsCmd.Flags().BoolVarP(&errorsBrowse, "browse", "b", false, "Browse failures interactively")
	errorsCmd.Flags().BoolVar(&errorsCopy, "copy", false, "Copy the failed asset ids to the clipboard")
}

func runErrors(cmd *cobra.Command, args []string) error {
	failed, err := assetStore.Failed(getContext())
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		fmt.Println(ui.FormatSuccess("No failed assets"))
		return nil
	}

	if errorsBrowse {
		return browseErrors(failed)
	}

	table := ui.NewTable([]ui.TableColumn{
		{Header: "Asset", Width: 20},
		{Header: "Retries", Width: 7},
		{Header: "Error", Width: 30},
	})
	for _, record := range failed {
		table.AddRow([]string{
			displayName(record),
			fmt.Sprintf("%d", record.RetryCount),
			truncate(record.ErrorMessage, 70),
		})
	}
	fmt.Print(table.Render())
	fmt.Println()
	fmt.Println(ui.FormatMuted(fmt.Sprintf("%d failed assets. Use 'iims reset-failed' to retry them.", len(failed))))

	if errorsCopy {
		ids := make([]string, len(failed))
		for i, record := range failed {
			ids[i] = record.ID
		}
		// Clipboard failure is not worth failing the command over
		if err := clipboard.WriteAll(strings.Join(ids, "\n")); err != nil {
			fmt.Println(ui.FormatMuted("(Clipboard access failed)"))
		} else {
			fmt.Println(ui.FormatInfo(fmt.Sprintf("%d asset ids copied to clipboard", len(ids))))
		}
	}
	return nil
}

func browseErrors(failed []domain.AssetRecord) error {
	idx, err := fuzzyfinder.Find(
		failed,
		func(i int) string {
			return displayName(failed[i])
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			record := failed[i]
			return fmt.Sprintf("Asset: %s\nKind: %s\nCreated: %s\nRetries: %d\n\n%s",
				record.ID,
				record.MediaKind,
				record.CreationDate.Format("2006-01-02 15:04"),
				record.RetryCount,
				record.ErrorMessage)
		}),
	)
	if err != nil {
		// User cancelled (Ctrl+C or ESC)
		fmt.Println(ui.FormatInfo("Operation cancelled."))
		return nil
	}

	record := failed[idx]
	fmt.Println(ui.RenderKeyValue("Asset", record.ID))
	fmt.Println(ui.RenderKeyValue("Kind", string(record.MediaKind)))
	fmt.Println(ui.RenderKeyValue("Retries", fmt.Sprintf("%d", record.RetryCount)))
	fmt.Println(ui.RenderKeyValue("Error", record.ErrorMessage))
	return nil
}

func displayName(record domain.AssetRecord) string {
	if record.OriginalFilename != "" {
		return record.OriginalFilename
	}
	return record.ID
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
