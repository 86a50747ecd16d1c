package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"envman/internal/listvalue"
	"envman/internal/model"
)

// SystemEnvironmentFile holds machine-wide variables on most Linux systems.
const SystemEnvironmentFile = "/etc/environment"

// Matches KEY=value, optionally prefixed with export.
var assignmentRe = regexp.MustCompile(`^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// Seed fills an empty store: user variables from environ (KEY=VALUE pairs,
// as from os.Environ) and system variables from systemFile. A store that
// already has records is left alone. It returns the number of records created.
func (s *Store) Seed(ctx context.Context, environ []string, systemFile string) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		// Windows keeps per-drive state in names starting with '='.
		if !ok || name == "" {
			continue
		}
		value = listDelimited(name, value, os.PathListSeparator)
		if _, err := s.Create(ctx, name, value, model.ScopeUser, nil); err != nil {
			s.logger.Warn("skipping environment variable", "name", name, "error", err)
			continue
		}
		created++
	}

	if systemFile != "" {
		f, err := os.Open(systemFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return created, fmt.Errorf("open %s: %w", systemFile, err)
		default:
			defer func() { _ = f.Close() }()
			vars, err := ParseEnvironmentFile(f)
			if err != nil {
				return created, fmt.Errorf("parse %s: %w", systemFile, err)
			}
			for _, v := range vars {
				value := listDelimited(v[0], v[1], os.PathListSeparator)
				if _, err := s.Create(ctx, v[0], value, model.ScopeSystem, nil); err != nil {
					s.logger.Warn("skipping system variable", "name", v[0], "error", err)
					continue
				}
				created++
			}
		}
	}
	s.logger.Info("seeded store", "records", created)
	return created, nil
}

// listDelimited rewrites a list variable written with the host separator
// (':' on Unix) to use the list delimiter. Values that already contain the
// delimiter are kept as they are.
func listDelimited(name, value string, sep rune) string {
	if !listvalue.IsListName(name) || strings.Contains(value, listvalue.Delimiter) {
		return value
	}
	return strings.ReplaceAll(value, string(sep), listvalue.Delimiter)
}

// ParseEnvironmentFile reads KEY=VALUE lines, skipping blanks and comments.
// Values lose one level of surrounding quotes.
func ParseEnvironmentFile(r io.Reader) ([][2]string, error) {
	var out [][2]string
	scanner := bufio.NewScanner(r)
	// Large buffer for long PATH lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := assignmentRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, [2]string{m[1], cleanValue(m[2])})
	}
	return out, scanner.Err()
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
