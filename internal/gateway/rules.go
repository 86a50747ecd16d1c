package gateway

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"envman/internal/listvalue"
	"envman/internal/model"
)

// Windows-style references such as %JAVA_HOME%.
var percentRef = regexp.MustCompile(`%([^%]+)%`)

// maxExpansionPasses bounds nested %VAR% expansion.
const maxExpansionPasses = 5

// ValidateAll checks every record. A record that cannot be checked is
// reported invalid; only cancellation fails the whole call.
func (s *Store) ValidateAll(ctx context.Context) ([]model.ValidationResult, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	env := newRefEnv(os.Environ(), records)

	results := make([]model.ValidationResult, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.validateLimit)
	for i, r := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = model.ValidationResult{ID: r.ID, Valid: checkRecord(r, env)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	s.logger.Debug("validation finished", "records", len(results), "invalid", invalid)
	return results, nil
}

// checkRecord applies the validation rules to one record:
// PATH is valid when at least half of its elements are existing directories;
// names ending in _HOME, _DIR or _PATH, and values that look like paths, must
// exist on disk; everything else is valid.
func checkRecord(r model.VariableRecord, env refEnv) bool {
	name := strings.ToUpper(r.Name)
	switch {
	case name == "PATH":
		elements := listvalue.Decode(r.Value)
		if len(elements) == 0 {
			return true
		}
		ok := 0
		for _, el := range elements {
			if model.DirExists(env.expand(el)) {
				ok++
			}
		}
		return ok*2 >= len(elements)
	case strings.HasSuffix(name, "_HOME"),
		strings.HasSuffix(name, "_DIR"),
		strings.HasSuffix(name, "_PATH"),
		strings.ContainsAny(r.Value, `/\`):
		return model.PathExists(env.expand(strings.TrimSpace(r.Value)))
	}
	return true
}

// refEnv resolves variable references found in values.
type refEnv struct {
	pairs []string          // NAME=value, for shell-style expansion
	fold  map[string]string // upper-cased name -> value, for %NAME%
}

// newRefEnv layers stored user variables, then system variables, over the
// process environment.
func newRefEnv(environ []string, records []model.VariableRecord) refEnv {
	values := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = v
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			set(k, v)
		}
	}
	for _, scope := range []model.Scope{model.ScopeUser, model.ScopeSystem} {
		for _, r := range records {
			if r.Scope == scope {
				set(r.Name, r.Value)
			}
		}
	}

	env := refEnv{fold: make(map[string]string, len(values))}
	for _, k := range order {
		env.pairs = append(env.pairs, k+"="+values[k])
		env.fold[strings.ToUpper(k)] = values[k]
	}
	return env
}

// expand resolves ~, %NAME% and $NAME / ${NAME} references in value.
func (e refEnv) expand(value string) string {
	out := model.ExpandTilde(value)
	for range maxExpansionPasses {
		changed := false
		out = percentRef.ReplaceAllStringFunc(out, func(m string) string {
			if v, ok := e.fold[strings.ToUpper(m[1:len(m)-1])]; ok {
				changed = true
				return v
			}
			return m
		})
		if !changed {
			break
		}
	}
	if strings.Contains(out, "$") {
		out = e.expandShell(out)
	}
	return out
}

func (e refEnv) expandShell(value string) string {
	word, err := syntax.NewParser().Document(strings.NewReader(value))
	if err != nil {
		return value
	}
	cfg := &expand.Config{Env: expand.ListEnviron(e.pairs...)}
	s, err := expand.Document(cfg, word)
	if err != nil {
		return value
	}
	return s
}
