package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/miltos211/iCloudImmichCleanSync/pkg/ui"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the health of your iims installation",
	Long: `Diagnose issues with your iims setup.

Checks for:
  - Data and scratch directories
  - Configuration file
  - The photo library helper binary
  - Server reachability`,
	Run: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) {
	fmt.Println(ui.FormatTitle("iims Doctor"))
	fmt.Println()

	checkStep("Data Directory", func() error {
		if _, err := os.Stat(appHome.RootPath); os.IsNotExist(err) {
			return fmt.Errorf("missing at %s", appHome.RootPath)
		}
		return nil
	})

	checkStep("Scratch Directory Writable", func() error {
		probe := filepath.Join(appHome.ScratchPath, ".doctor-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
			return fmt.Errorf("cannot write to %s: %v", appHome.ScratchPath, err)
		}
		os.Remove(probe)
		return nil
	})

	checkStep("Configuration File", func() error {
		if _, err := os.Stat(appHome.ConfigPath); os.IsNotExist(err) {
			return fmt.Errorf("missing at %s (run 'iims config' to create it)", appHome.ConfigPath)
		}
		return nil
	})

	checkStep("Helper Binary", func() error {
		binary := cfg.HelperBinary
		if binary == "" {
			return fmt.Errorf("helper_binary not configured")
		}
		if filepath.IsAbs(binary) {
			info, err := os.Stat(binary)
			if err != nil {
				return fmt.Errorf("not found at %s", binary)
			}
			if info.Mode()&0o111 == 0 {
				return fmt.Errorf("%s is not executable", binary)
			}
			return nil
		}
		if _, err := exec.LookPath(binary); err != nil {
			return fmt.Errorf("%q not found in PATH", binary)
		}
		return nil
	})

	checkStep("Server Configured", func() error {
		if !cfg.ServerConfigured() {
			return fmt.Errorf("server_url or api_key unset in %s", appHome.ConfigPath)
		}
		return nil
	})

	checkStep("Server Reachable", func() error {
		if remoteClient == nil {
			return fmt.Errorf("skipped (server not configured)")
		}
		return remoteClient.ValidateConnection(getContext())
	})
}

// checkStep runs a check function and prints the result nicely
func checkStep(name string, check func() error) {
	err := check()
	if err == nil {
		fmt.Printf("%s %s\n", ui.FormatSuccess("✔"), name)
	} else {
		fmt.Printf("%s %s\n", ui.FormatError("✘"), name)
		fmt.Printf("    %s\n", ui.StyleMuted.Render(err.Error()))
	}
}
