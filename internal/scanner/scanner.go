// Package scanner walks a directory tree and finds statement files.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwhitmer/bankmerge/internal/parser"
)

// Scanner walks a directory tree and finds statement files by extension.
// Expected layout: {root}/{account}/file.ext; files directly under the root
// have no inferred account and the caller must supply one.
type Scanner struct {
	rootDir string
}

// New creates a scanner for the given root directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is a found file with its metadata.
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// Scan walks the directory tree and returns all statement files in walk
// order.
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir := expandHome(s.rootDir)

	var results []ScanResult
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isStatementFile(path) {
			return nil
		}

		meta, err := parser.NewMetadata(path, time.Now())
		if err != nil {
			return err
		}
		if account := inferAccount(path, rootDir); account != "" {
			meta.SetAccountID(account)
		}

		results = append(results, ScanResult{Path: path, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// isStatementFile checks if the file has a supported statement extension.
func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".qif", ".ofx", ".qfx", ".xml":
		return true
	}
	return false
}

// inferAccount extracts the account from the first directory under the root.
func inferAccount(filePath, rootDir string) string {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// expandHome expands a leading ~ to the home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
