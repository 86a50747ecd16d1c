package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envman/internal/model"
)

func TestCheckRecord(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.Mkdir(bin, 0o755))
	file := filepath.Join(dir, "tool.jar")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	missing := filepath.Join(dir, "missing")

	env := newRefEnv([]string{"TOOLS=" + dir}, []model.VariableRecord{
		{Name: "MY_BIN", Value: bin, Scope: model.ScopeUser},
	})

	tests := []struct {
		name   string
		record model.VariableRecord
		want   bool
	}{
		{"path all present", model.VariableRecord{Name: "PATH", Value: bin + ";" + dir}, true},
		{"path half present", model.VariableRecord{Name: "Path", Value: bin + ";" + missing}, true},
		{"path mostly missing", model.VariableRecord{Name: "PATH", Value: bin + ";" + missing + ";" + missing + "2"}, false},
		{"path file is not a dir", model.VariableRecord{Name: "PATH", Value: file}, false},
		{"empty path", model.VariableRecord{Name: "PATH", Value: " ; "}, true},
		{"home exists", model.VariableRecord{Name: "JAVA_HOME", Value: dir}, true},
		{"home missing", model.VariableRecord{Name: "JAVA_HOME", Value: missing}, false},
		{"dir suffix", model.VariableRecord{Name: "CACHE_DIR", Value: missing}, false},
		{"file path value", model.VariableRecord{Name: "CLASSPATH_JAR", Value: file}, true},
		{"slash in value", model.VariableRecord{Name: "CONFIG", Value: missing}, false},
		{"percent reference", model.VariableRecord{Name: "PATH", Value: "%tools%;%MY_BIN%"}, true},
		{"shell reference", model.VariableRecord{Name: "TOOLS_HOME", Value: "$TOOLS/bin"}, true},
		{"braced reference", model.VariableRecord{Name: "TOOLS_HOME", Value: "${TOOLS}/nothing"}, false},
		{"plain value", model.VariableRecord{Name: "EDITOR", Value: "vim"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkRecord(tt.record, env))
		})
	}
}

func TestRefEnvExpand(t *testing.T) {
	env := newRefEnv([]string{"A=%B%", "B=%C%", "C=done", "LOOP=%LOOP%"}, nil)
	assert.Equal(t, "done/x", env.expand("%a%/x"))
	assert.Equal(t, "%UNSET%", env.expand("%UNSET%"))
	assert.Equal(t, "%LOOP%", env.expand("%LOOP%"), "self reference stops after bounded passes")
	assert.Equal(t, "done-done", env.expand("$C-${C}"))
}

func TestRefEnvStoredOverridesProcess(t *testing.T) {
	env := newRefEnv([]string{"ROOT=/proc-root"}, []model.VariableRecord{
		{Name: "ROOT", Value: "/user-root", Scope: model.ScopeUser},
		{Name: "ROOT", Value: "/system-root", Scope: model.ScopeSystem},
	})
	assert.Equal(t, "/system-root", env.expand("%ROOT%"))
}

func TestValidateAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, WithValidateConcurrency(2))
	dir := t.TempDir()

	good, err := s.Create(ctx, "APP_HOME", dir, model.ScopeUser, nil)
	require.NoError(t, err)
	bad, err := s.Create(ctx, "APP_DIR", filepath.Join(dir, "gone"), model.ScopeUser, nil)
	require.NoError(t, err)
	plain, err := s.Create(ctx, "LANG", "en_US.UTF-8", model.ScopeSystem, nil)
	require.NoError(t, err)

	results, err := s.ValidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ValidationResult{
		{ID: good.ID, Valid: true},
		{ID: bad.ID, Valid: false},
		{ID: plain.ID, Valid: true},
	}, results)
}

func TestValidateAllCancelled(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(context.Background(), "A", "1", model.ScopeUser, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ValidateAll(ctx)
	assert.Error(t, err)
}
