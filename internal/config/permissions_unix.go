//go:build unix

package config

import (
	"fmt"
	"os"
)

// writableByOthers returns path's permission bits and whether group or other
// users may modify it. Missing paths are not reported.
func writableByOthers(path string) (os.FileMode, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	mode := info.Mode().Perm()
	return mode, mode&0022 != 0
}

// checkConfigPermissions warns when other users can edit the config file,
// and with it which database is opened and which migrations run on open.
func checkConfigPermissions(path string) string {
	mode, loose := writableByOthers(path)
	if !loose {
		return ""
	}
	return fmt.Sprintf(
		"WARNING: Config file '%s' is writable by other users (%04o)\n"+
			"         They can change which database is opened and which migrations run.\n"+
			"         Run: chmod go-w %s\n\n",
		path, mode, path,
	)
}

// checkStoragePermissions warns when other users can replace or rewrite the
// data directory or a database file.
func checkStoragePermissions(path string) string {
	mode, loose := writableByOthers(path)
	if !loose {
		return ""
	}
	return fmt.Sprintf(
		"WARNING: '%s' is writable by other users (%04o)\n"+
			"         They can replace or corrupt the database.\n"+
			"         Run: chmod go-w %s\n\n",
		path, mode, path,
	)
}
