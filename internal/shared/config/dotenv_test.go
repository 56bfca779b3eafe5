package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		line, key, val string
		ok             bool
	}{
		{"PORT=9090", "PORT", "9090", true},
		{"export LLM_PROVIDER=fake", "LLM_PROVIDER", "fake", true},
		{`GEMINI_API_KEY="abc def"`, "GEMINI_API_KEY", "abc def", true},
		{"S3_PREFIX='scripts/'", "S3_PREFIX", "scripts/", true},
		{"# comment", "", "", false},
		{"NOVALUE", "", "", false},
		{"   ", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.line)
		if ok != tc.ok || key != tc.key || val != tc.val {
			t.Fatalf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, val, ok)
		}
	}
}

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "SCRIPT_TEST_SET=from-file\nSCRIPT_TEST_UNSET=from-file\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SCRIPT_TEST_SET", "from-env")
	t.Setenv("SCRIPT_TEST_UNSET", "")
	os.Unsetenv("SCRIPT_TEST_UNSET")

	loadEnvFiles(filepath.Join(dir, "missing.env"), path)

	if got := os.Getenv("SCRIPT_TEST_SET"); got != "from-env" {
		t.Fatalf("existing value overwritten: %q", got)
	}
	if got := os.Getenv("SCRIPT_TEST_UNSET"); got != "from-file" {
		t.Fatalf("unset value not loaded: %q", got)
	}
}
