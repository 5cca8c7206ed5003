package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/graph"
	"github.com/wuzhiguocarter/Aletheia/pkg/auth"
)

func writeSnapshot(t *testing.T, blocks ...block.Block) string {
	t.Helper()
	raw, err := json.Marshal(graph.Snapshot{ProjectID: "p1", Blocks: blocks})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestRun(t *testing.T) {
	color.NoColor = true
	questions := make([]block.Block, 4)
	for i := range questions {
		questions[i] = block.Block{ID: shared.BlockID(fmt.Sprintf("q%d", i)), Type: block.TypeQuestion, Content: "Why?"}
	}
	path := writeSnapshot(t, questions...)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{name: "no command", wantCode: 2, wantErr: "usage"},
		{name: "unknown command", args: []string{"serve"}, wantCode: 1, wantErr: `unknown command "serve"`},
		{name: "insights", args: []string{"insights", "-snapshot", path}, wantOut: "[opportunity]"},
		{name: "insights without snapshot", args: []string{"insights"}, wantCode: 1, wantErr: "-snapshot is required"},
		{name: "markdown export", args: []string{"export", "-snapshot", path, "-title", "Tides"}, wantOut: "# Tides"},
		{name: "bad format", args: []string{"export", "-snapshot", path, "-format", "pdf"}, wantCode: 1, wantErr: "unsupported export format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, stderr.String())
			if tt.wantOut != "" {
				assert.Contains(t, stdout.String(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRunToken(t *testing.T) {
	secret := strings.Repeat("s", 32)
	t.Setenv("JWT_SECRET", secret)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"token", "-user", "alice"}, &stdout, &stderr), stderr.String())

	v, err := auth.NewValidator(auth.Config{SecretKey: secret, Issuer: "aletheia"})
	require.NoError(t, err)
	claims, err := v.Validate(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID())
}
