package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envFilePaths lists the .env files consulted at startup, nearest first.
func envFilePaths(dataDir string) []string {
	paths := []string{".env"}
	if dataDir != "" {
		paths = append(paths, filepath.Join(expandPath(dataDir), ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "notakopi", ".env"))
	}
	return paths
}

// LoadEnvFiles exports variables from the .env files that exist. Variables
// already in the environment win, and so do earlier files.
func LoadEnvFiles(dataDir string) error {
	var found []string
	for _, path := range envFilePaths(dataDir) {
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return godotenv.Load(found...)
}

func GetEnvWithFallback(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

// envAliases maps canonical NOTAKOPI_ keys to names people already export.
var envAliases = map[string][]string{
	"NOTAKOPI_OCR_API_KEY":             {"OCR_SPACE_API_KEY", "OCRSPACE_API_KEY"},
	"NOTAKOPI_SECURITY_JWT_SECRET":     {"NOTAKOPI_JWT_SECRET", "JWT_SECRET"},
	"NOTAKOPI_SECURITY_ADMIN_PASSWORD": {"NOTAKOPI_ADMIN_PASSWORD", "ADMIN_PASSWORD"},
}

func ResolveEnvWithAliases(canonicalKey string) string {
	return GetEnvWithFallback(append([]string{canonicalKey}, envAliases[canonicalKey]...)...)
}

// expandPath resolves a leading "~/" against the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
