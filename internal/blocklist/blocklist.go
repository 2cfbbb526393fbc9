// Package blocklist reads externally shared bot-name lists and diffs them
// against the channel's current block list, producing the set of names a
// bulk run still has to block.
package blocklist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ParseNames reads one login per line. Blank lines and leading "#" comments
// are skipped; logins are lowercased so diffs are case-insensitive.
func ParseNames(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, strings.ToLower(line))
	}
	if err := sc.Err(); err != nil {
		return names, fmt.Errorf("blocklist: scan: %w", err)
	}
	return names, nil
}

// ParseCSV reads the shared community blocklist export format: one login in
// the first comma-separated column, with an optional "userName" header row.
func ParseCSV(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name := line
		if i := strings.IndexByte(line, ','); i >= 0 {
			name = strings.TrimSpace(line[:i])
		}
		if name == "" || strings.EqualFold(name, "userName") {
			continue
		}
		names = append(names, strings.ToLower(name))
	}
	if err := sc.Err(); err != nil {
		return names, fmt.Errorf("blocklist: scan: %w", err)
	}
	return names, nil
}

// Load reads a list file, choosing the parser by extension.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSV(f)
	}
	return ParseNames(f)
}

// Diff returns the imported names not already present in current, sorted and
// deduplicated. Comparison is case-insensitive.
func Diff(current, imported []string) []string {
	have := make(map[string]struct{}, len(current))
	for _, n := range current {
		have[strings.ToLower(n)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(imported))
	var missing []string
	for _, n := range imported {
		n = strings.ToLower(n)
		if _, ok := have[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		missing = append(missing, n)
	}
	sort.Strings(missing)
	return missing
}
