package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"envman/internal/model"
)

const exportVersion = "1.0"

// exportDocument is the on-disk format of an export.
type exportDocument struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exportedAt"`
	Variables  []model.VariableRecord `json:"variables"`
}

// ExportAll writes every record to the export target and returns where it
// went: a file path or an s3:// URL.
func (s *Store) ExportAll(ctx context.Context) (string, error) {
	records, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	for i := range records {
		records[i].Valid = model.ValidityUnknown
	}
	now := s.now()
	doc := exportDocument{Version: exportVersion, ExportedAt: now.UTC(), Variables: records}
	if doc.Variables == nil {
		doc.Variables = []model.VariableRecord{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	name := fmt.Sprintf("env-export-%s.json", now.Format("20060102-150405"))

	if bucket, prefix, ok := parseS3URL(s.exportTarget); ok {
		if s.blobs == nil {
			return "", fmt.Errorf("export to %s: no object store configured", s.exportTarget)
		}
		key := path.Join(prefix, name)
		if err := s.blobs.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
			return "", fmt.Errorf("upload export: %w", err)
		}
		loc := "s3://" + bucket + "/" + key
		s.logger.Info("exported variables", "count", len(records), "location", loc)
		return loc, nil
	}

	dir := model.ExpandTilde(s.exportTarget)
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	s.logger.Info("exported variables", "count", len(records), "location", file)
	return file, nil
}

// ImportAll reads an export from a file path or s3:// URL and creates each
// variable with a new id. Variables that cannot be created are logged and
// skipped.
func (s *Store) ImportAll(ctx context.Context, source string) ([]model.VariableRecord, error) {
	data, err := s.readSource(ctx, source)
	if err != nil {
		return nil, err
	}
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	var imported []model.VariableRecord
	for _, v := range doc.Variables {
		scope, ok := model.ParseScope(string(v.Scope))
		if !ok {
			s.logger.Warn("skipping variable with unknown scope", "name", v.Name, "scope", v.Scope)
			continue
		}
		r, err := s.Create(ctx, v.Name, v.Value, scope, v.Note)
		if err != nil {
			s.logger.Warn("failed to import variable", "name", v.Name, "error", err)
			continue
		}
		imported = append(imported, r)
	}
	s.logger.Info("imported variables", "source", source, "count", len(imported), "skipped", len(doc.Variables)-len(imported))
	return imported, nil
}

func (s *Store) readSource(ctx context.Context, source string) ([]byte, error) {
	bucket, key, ok := parseS3URL(source)
	if !ok {
		data, err := os.ReadFile(model.ExpandTilde(source))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		return data, nil
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("import from %s: no object store configured", source)
	}
	if b := s.blobs.Bucket(); b != bucket {
		return nil, fmt.Errorf("import from %s: object store is bound to bucket %q", source, b)
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", source, err)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// parseS3URL splits s3://bucket/key into its parts.
func parseS3URL(s string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(s, "s3://")
	if !found || rest == "" {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, strings.Trim(key, "/"), true
}
