package config

import (
	"os"
	"testing"
)

// FuzzLoadGlobalConfig tests LoadGlobalConfig with various file inputs
func FuzzLoadGlobalConfig(f *testing.F) {
	// Seed with various YAML content patterns
	f.Add("driver:\n  installPath: /usr/local/bin/chromedriver\n  fallbackChannel: Stable\nbot:\n  mode: browser\n  command: python twitter_bot.py")
	f.Add("{}")
	f.Add("")
	f.Add("invalid: yaml: content: [")
	f.Add("bot:\n  mode: \"\"\n  command: \"\"")
	f.Add("schedule:\n  times: [\"08:00\", \"25:99\"]")
	// Document separator
	f.Add("---\nlogging:\n  level: debug")
	// Null values
	f.Add("driver: null\nbot: null")
	f.Add("logging:\n  level: info\n  extra_field: \"should be rejected\"")

	f.Fuzz(func(t *testing.T, yamlContent string) {
		// Write content to a temporary file
		tempFile := t.TempDir() + "/botrunner.yml"
		if err := writeTestFile(tempFile, yamlContent); err != nil {
			t.Skip("Failed to create temp file")
		}

		// Should not crash regardless of input
		cfg, err := LoadGlobalConfig(tempFile)

		if err != nil {
			if cfg != nil {
				t.Error("Expected nil config when error occurred")
			}
		} else if cfg == nil {
			t.Error("Expected non-nil config when no error occurred")
		}
	})
}

// FuzzParseGlobalConfig tests parseGlobalConfig with raw YAML data
func FuzzParseGlobalConfig(f *testing.F) {
	// Seed with various YAML patterns that might cause parsing issues
	f.Add([]byte("workDir: /srv/bot"))
	f.Add([]byte(""))
	f.Add([]byte("null"))
	f.Add([]byte("{}"))
	f.Add([]byte("[]"))
	f.Add([]byte("invalid yaml content ]["))
	// Multiple document separators
	f.Add([]byte("---\n---\n---"))
	f.Add([]byte("bot:\n  command: \"python\\\n  twitter_bot.py\""))
	// YAML tags
	f.Add([]byte("driver:\n  timeout: !!str 30s"))
	// YAML anchors
	f.Add([]byte("logging: &anchor\n  level: info\nother: *anchor"))
	// Large input
	f.Add([]byte(string(make([]byte, 10000))))
	f.Add([]byte("schedule:\n  lockTTL: 2h\n# comment"))

	f.Fuzz(func(t *testing.T, yamlData []byte) {
		cfg, err := parseGlobalConfig(yamlData)

		if err != nil {
			if cfg != nil {
				t.Error("Expected nil config when error occurred")
			}
		} else if cfg == nil {
			t.Error("Expected non-nil config when no error occurred")
		}
	})
}

// writeTestFile is a helper to write content to a file for testing
func writeTestFile(path, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(content)
	return err
}
