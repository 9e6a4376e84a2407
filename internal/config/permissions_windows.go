//go:build windows

package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// sharedACL reports whether icacls lists a broad group with write access to path.
func sharedACL(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	output, err := exec.Command("icacls", path).Output()
	if err != nil {
		return false
	}

	for _, line := range strings.Split(strings.ToLower(string(output)), "\n") {
		broad := strings.Contains(line, "everyone") ||
			strings.Contains(line, "authenticated users") ||
			strings.Contains(line, "builtin\\users")
		// (F) full, (M) modify, (W) write
		writable := strings.Contains(line, "(f)") || strings.Contains(line, "(m)") || strings.Contains(line, "(w)")
		if broad && writable {
			return true
		}
	}
	return false
}

func checkConfigPermissions(path string) string {
	if !sharedACL(path) {
		return ""
	}
	return fmt.Sprintf(
		"WARNING: Config file '%s' may be writable by other users\n"+
			"         They can change which database is opened and which migrations run.\n"+
			"         Run in PowerShell: icacls \"%s\" /inheritance:r /grant:r \"%%USERNAME%%:F\"\n\n",
		path, path,
	)
}

func checkStoragePermissions(path string) string {
	if !sharedACL(path) {
		return ""
	}
	return fmt.Sprintf(
		"WARNING: '%s' may be writable by other users\n"+
			"         They can replace or corrupt the database.\n"+
			"         Run in PowerShell: icacls \"%s\" /inheritance:r /grant:r \"%%USERNAME%%:F\"\n\n",
		path, path,
	)
}
