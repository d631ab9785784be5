package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# comment
DIALTONE_TEST_A=plain
DIALTONE_TEST_B="quoted value"
DIALTONE_TEST_C='single'

=bad
NOVALUE
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"DIALTONE_TEST_A", "DIALTONE_TEST_B", "DIALTONE_TEST_C"} {
		t.Setenv(k, "") // registers cleanup, value overwritten below
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("DIALTONE_TEST_A"); got != "plain" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("DIALTONE_TEST_B"); got != "quoted value" {
		t.Errorf("B = %q", got)
	}
	if got := os.Getenv("DIALTONE_TEST_C"); got != "single" {
		t.Errorf("C = %q", got)
	}
}

func TestLoadEnvFile_missingIsOK(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing env file should be silently skipped, got %v", err)
	}
}
