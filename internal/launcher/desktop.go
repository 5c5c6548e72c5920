package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/team-slide/y1setup/internal/branding"
	"github.com/team-slide/y1setup/internal/paths"
	"github.com/team-slide/y1setup/internal/payload"
)

// DesktopEntry renders the freedesktop descriptor for the launcher.
func DesktopEntry(scriptPath, installRoot string) string {
	icon := filepath.Join(installRoot, payload.AppDir, "assets", "icon.png")
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Comment=%s
Exec=%s
Icon=%s
Terminal=false
Categories=Utility;
`, branding.DisplayName(), branding.Description(), scriptPath, icon)
}

// WriteDesktopEntry writes the .desktop file pointing at the launcher
// script. A no-op outside Linux. Returns the entry path ("" when
// skipped).
func WriteDesktopEntry(scriptPath, installRoot string) (string, error) {
	if runtime.GOOS != "linux" {
		return "", nil
	}
	entryPath, err := paths.DesktopEntryPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(entryPath), 0755); err != nil {
		return "", fmt.Errorf("creating applications directory: %w", err)
	}
	if err := os.WriteFile(entryPath, []byte(DesktopEntry(scriptPath, installRoot)), 0644); err != nil {
		return "", fmt.Errorf("writing desktop entry: %w", err)
	}
	return entryPath, nil
}
