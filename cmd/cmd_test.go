package cmd

import (
	"testing"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/ports/mocks"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/services"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// TestCommandStructure verifies that all commands are properly registered
func TestCommandStructure(t *testing.T) {
	commands := []string{
		"sync", "refresh", "dedup", "status", "errors", "reset-failed",
		"doctor", "config", "version",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{cmdName})
			if err != nil {
				t.Errorf("Command '%s' not found: %v", cmdName, err)
			}
			if cmd == nil {
				t.Errorf("Command '%s' is nil", cmdName)
			}
			if cmd.Use == "" {
				t.Errorf("Command '%s' has no Use field", cmdName)
			}
		})
	}
}

// TestRootCommandExists verifies the root command is properly configured
func TestRootCommandExists(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("Root command is nil")
	}

	if rootCmd.Use != "iims" {
		t.Errorf("Expected root command Use to be 'iims', got '%s'", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Root command Short description is empty")
	}
}

// TestCommandsHaveHelp verifies all commands have help text
func TestCommandsHaveHelp(t *testing.T) {
	commands := rootCmd.Commands()

	if len(commands) == 0 {
		t.Fatal("No commands registered")
	}

	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			if cmd.Short == "" {
				t.Errorf("Command '%s' has no Short description", cmd.Name())
			}
		})
	}
}

// TestServiceInitialization verifies services can be initialized with mocks
func TestServiceInitialization(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()

	refresh := services.NewRefreshService(store, provider, logger.Nop())
	if refresh == nil {
		t.Error("RefreshService is nil")
	}

	sync := services.NewSyncService(store, provider, client, logger.Nop(), services.SyncConfig{
		ScratchRoot: t.TempDir(),
	})
	if sync == nil {
		t.Error("SyncService is nil")
	}
}

// TestFlagsExist verifies important flags are registered
func TestFlagsExist(t *testing.T) {
	tests := []struct {
		command  string
		flagName string
	}{
		{"sync", "type"},
		{"sync", "screenshots-only"},
		{"sync", "no-screenshots"},
		{"sync", "resume"},
		{"sync", "reset"},
		{"sync", "dry-run"},
		{"sync", "check-only"},
		{"sync", "no-progress"},
		{"refresh", "type"},
		{"refresh", "screenshots-only"},
		{"refresh", "no-screenshots"},
		{"errors", "browse"},
		{"errors", "copy"},
		{"config", "edit"},
	}

	for _, tt := range tests {
		t.Run(tt.command+"_"+tt.flagName, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.command})
			if err != nil {
				t.Fatalf("Command '%s' not found: %v", tt.command, err)
			}

			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Errorf("Flag '--%s' not found on command '%s'", tt.flagName, tt.command)
			}
		})
	}
}

// TestValidateTypeFlag verifies the shared type flag validation
func TestValidateTypeFlag(t *testing.T) {
	for _, valid := range []string{"image", "video", "all"} {
		if err := validateTypeFlag(valid); err != nil {
			t.Errorf("validateTypeFlag(%q) = %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "photos", "IMAGE"} {
		if err := validateTypeFlag(invalid); err == nil {
			t.Errorf("validateTypeFlag(%q) should fail", invalid)
		}
	}
}
