package symbols

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Resolve picks the symbol set for a scan. A non-empty comma list wins,
// then a symbol file (one ticker per line, # comments), then the named
// universe. Symbols are uppercased and deduplicated preserving order.
func Resolve(list, file string, universe Universe) ([]string, error) {
	if strings.TrimSpace(list) != "" {
		return ParseList(list), nil
	}
	if file != "" {
		return LoadFile(file)
	}

	syms := GetUniverse(universe)
	if syms == nil {
		return nil, fmt.Errorf("unknown universe %q (want default, extended or test)", universe)
	}
	return syms, nil
}

// ParseList splits a comma-separated ticker list
func ParseList(list string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// LoadFile reads tickers from a file, one per line. Blank lines and
// lines starting with # are skipped; inline # comments are stripped.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol file: %w", err)
	}
	defer f.Close()

	var out []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		sym := strings.ToUpper(strings.TrimSpace(line))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read symbol file: %w", err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("symbol file %s contains no symbols", path)
	}
	return out, nil
}
