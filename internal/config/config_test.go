package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte("{}"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}

	if cfg.Database.Name != DefaultName {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, DefaultName)
	}
	if cfg.Database.DataDir != DefaultDataDir() {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, DefaultDataDir())
	}
	if !cfg.MigrationsActive() {
		t.Error("migrations should be active by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Dump.CompatibilityMode || cfg.CSV.QuoteAllFields || cfg.CSV.EmptyAsNull {
		t.Error("dump and csv flags should default to false")
	}
}

func TestLoadBytesFullConfig(t *testing.T) {
	data := `
database:
  name: inventory
  data_dir: /var/lib/litekeep
  debug: true
migrations:
  active: false
dump:
  compatibility_mode: true
csv:
  quote_all_fields: true
  empty_as_null: true
logging:
  format: json
`
	cfg, err := LoadBytes([]byte(data))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}

	if cfg.Database.Name != "inventory" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
	if got, want := cfg.DatabasePath(), filepath.Join("/var/lib/litekeep", "inventory.sqlite3"); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
	if cfg.MigrationsActive() {
		t.Error("migrations.active: false was ignored")
	}
	if !cfg.Dump.CompatibilityMode || !cfg.CSV.QuoteAllFields || !cfg.CSV.EmptyAsNull {
		t.Errorf("flags not loaded: dump=%+v csv=%+v", cfg.Dump, cfg.CSV)
	}
	// debug raises the default level
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadBytesExpandsEnv(t *testing.T) {
	t.Setenv("LITEKEEP_TEST_DB", "fromenv")
	t.Setenv("LITEKEEP_TEST_DIR", "/tmp/litekeep-env")

	cfg, err := LoadBytes([]byte("database:\n  name: ${LITEKEEP_TEST_DB}\n  data_dir: $LITEKEEP_TEST_DIR\n"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.Database.Name != "fromenv" {
		t.Errorf("Database.Name = %q, want fromenv", cfg.Database.Name)
	}
	if cfg.Database.DataDir != "/tmp/litekeep-env" {
		t.Errorf("Database.DataDir = %q", cfg.Database.DataDir)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		errorMsg string
	}{
		{"path in name", "database:\n  name: ../escape\n", "database.name must be a plain name"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format must be 'text' or 'json'"},
		{"file without migrations", "migrations:\n  active: false\n  file: m.yaml\n", "migrations.file is set"},
		{"bad yaml", "database: [", "parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errorMsg)
			}
		})
	}
}

func TestInMemoryHasNoPath(t *testing.T) {
	cfg, err := LoadBytes([]byte("database:\n  in_memory: true\n"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.DatabasePath() != "" {
		t.Errorf("DatabasePath() = %q, want empty", cfg.DatabasePath())
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	if got := expandTilde("~/some/path"); got != filepath.Join(home, "some/path") {
		t.Errorf("expandTilde(~/some/path) = %q", got)
	}
	if got := expandTilde("~"); got != home {
		t.Errorf("expandTilde(~) = %q", got)
	}
	if got := expandTilde("/abs/~/path"); got != "/abs/~/path" {
		t.Errorf("expandTilde(/abs/~/path) = %q", got)
	}

	cfg, err := LoadBytes([]byte("database:\n  data_dir: ~/dbs\nmigrations:\n  file: ~/m.yaml\n"))
	if err != nil {
		t.Fatalf("LoadBytes() error: %v", err)
	}
	if cfg.Database.DataDir != filepath.Join(home, "dbs") {
		t.Errorf("Database.DataDir = %q", cfg.Database.DataDir)
	}
	if cfg.Migrations.File != filepath.Join(home, "m.yaml") {
		t.Errorf("Migrations.File = %q", cfg.Migrations.File)
	}
}

func TestLoadWithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "litekeep.yaml")
	if err := os.WriteFile(path, []byte("database:\n  name: filedb\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadWithOptions(path, LoadOptions{SuppressWarnings: true})
	if err != nil {
		t.Fatalf("LoadWithOptions() error: %v", err)
	}
	if cfg.Database.Name != "filedb" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCheckConfigPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	dir := t.TempDir()

	for _, tt := range []struct {
		mode os.FileMode
		warn bool
	}{
		{0600, false},
		{0644, false},
		{0664, true},
		{0666, true},
	} {
		path := filepath.Join(dir, "litekeep.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, tt.mode); err != nil {
			t.Fatal(err)
		}
		w := checkConfigPermissions(path)
		if got := strings.Contains(w, "chmod go-w"); got != tt.warn {
			t.Errorf("mode %04o: warning = %q, want warning %v", tt.mode, w, tt.warn)
		}
	}

	if w := checkConfigPermissions(filepath.Join(dir, "missing.yaml")); w != "" {
		t.Errorf("unexpected warning for missing file: %q", w)
	}
}

func TestStorageWarnings(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0700); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Database.DataDir = dir
	cfg.Database.Name = "inventory"
	if w := cfg.StorageWarnings(); len(w) != 0 {
		t.Errorf("unexpected warnings before the database exists: %q", w)
	}

	if err := os.WriteFile(cfg.DatabasePath(), nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(cfg.DatabasePath(), 0666); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0777); err != nil {
		t.Fatal(err)
	}
	w := cfg.StorageWarnings()
	if len(w) != 2 || !strings.Contains(w[0], dir) || !strings.Contains(w[1], "inventory.sqlite3") {
		t.Errorf("StorageWarnings() = %q, want directory and file warnings", w)
	}

	cfg.Database.InMemory = true
	if w := cfg.StorageWarnings(); w != nil {
		t.Errorf("in-memory database should not warn: %q", w)
	}
}

func TestDefaultAndYAML(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}

	cfg.SetMigrationsActive(false)
	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML() error: %v", err)
	}
	reloaded, err := LoadBytes(out)
	if err != nil {
		t.Fatalf("reloading YAML() output: %v", err)
	}
	if reloaded.MigrationsActive() || reloaded.Database.Name != DefaultName {
		t.Errorf("round trip lost values: %+v", reloaded)
	}
}
