package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

var configEdit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the iims configuration",
	Long: `Print the effective configuration, or open the config file in your
editor with --edit. A default config file is written on first edit.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVarP(&configEdit, "edit", "e", false, "Open the config file in $EDITOR")
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := appHome.ConfigPath

	if configEdit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Println(ui.FormatInfo("Created default config: " + path))
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		c := exec.Command(editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	}

	fmt.Println(ui.FormatTitle("iims Configuration"))
	fmt.Println(ui.FormatMuted(path))
	fmt.Println()
	fmt.Println(ui.RenderKeyValue("server_url", orUnset(cfg.ServerURL)))
	fmt.Println(ui.RenderKeyValue("api_key", maskSecret(cfg.APIKey)))
	fmt.Println(ui.RenderKeyValue("helper_binary", orUnset(cfg.HelperBinary)))
	fmt.Println(ui.RenderKeyValue("sync_images", fmt.Sprintf("%t", cfg.SyncImages)))
	fmt.Println(ui.RenderKeyValue("sync_videos", fmt.Sprintf("%t", cfg.SyncVideos)))
	fmt.Println(ui.RenderKeyValue("include_screenshots", fmt.Sprintf("%t", cfg.IncludeScreenshots)))
	fmt.Println(ui.RenderKeyValue("max_retries", fmt.Sprintf("%d", cfg.MaxRetries)))
	fmt.Println(ui.RenderKeyValue("dedup_chunk_size", fmt.Sprintf("%d", cfg.DedupChunkSize)))
	fmt.Println(ui.RenderKeyValue("request_timeout", fmt.Sprintf("%ds", cfg.RequestTimeout)))
	fmt.Println(ui.RenderKeyValue("upload_timeout", fmt.Sprintf("%ds", cfg.UploadTimeout)))
	fmt.Println(ui.RenderKeyValue("export_timeout", fmt.Sprintf("%ds", cfg.ExportTimeout)))
	fmt.Println(ui.RenderKeyValue("log_level", cfg.LogLevel))
	return nil
}

func orUnset(value string) string {
	if value == "" {
		return ui.FormatMuted("(unset)")
	}
	return value
}

func maskSecret(value string) string {
	if value == "" {
		return ui.FormatMuted("(unset)")
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
