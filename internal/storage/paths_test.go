package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRelative(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "plain", in: "biology/cells.pdf", want: "biology/cells.pdf"},
		{name: "backslashes", in: `biology\cells.pdf`, want: "biology/cells.pdf"},
		{name: "redundant parts", in: "biology//./cells.pdf", want: "biology/cells.pdf"},
		{name: "empty", in: "", want: ""},
		{name: "parent", in: "../other/secret.pdf", wantErr: ErrInvalidPath},
		{name: "nested parent", in: "biology/../../secret.pdf", wantErr: ErrInvalidPath},
		{name: "absolute", in: "/etc/passwd", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanRelative(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaths_Resolve(t *testing.T) {
	root := t.TempDir()
	p := NewPaths(root)

	abs, err := p.Resolve(7, "biology/cells.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "7", "biology", "cells.pdf"), abs)

	_, err = p.Resolve(7, "../8/cells.pdf")
	assert.ErrorIs(t, err, ErrInvalidPath)

	key, err := p.Key(7, "biology/cells.pdf")
	require.NoError(t, err)
	assert.Equal(t, "7/biology/cells.pdf", key)

	got, ok := p.KeyOf(abs)
	assert.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = p.KeyOf(filepath.Join(filepath.Dir(root), "elsewhere.pdf"))
	assert.False(t, ok)
}

func TestLocalBlobs_PutRemove(t *testing.T) {
	root := t.TempDir()
	blobs := NewLocalBlobs(root)
	ctx := context.Background()

	body := "a short summary"
	require.NoError(t, blobs.Put(ctx, "7/biology/Resumen_cells.txt", strings.NewReader(body), int64(len(body)), "text/plain"))

	data, err := os.ReadFile(filepath.Join(root, "7", "biology", "Resumen_cells.txt"))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	require.NoError(t, blobs.Remove(ctx, "7/biology/Resumen_cells.txt"))
	_, err = os.Stat(filepath.Join(root, "7", "biology", "Resumen_cells.txt"))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	assert.NoError(t, blobs.Remove(ctx, "7/biology/Resumen_cells.txt"))
	assert.ErrorIs(t, blobs.Put(ctx, "../escape.txt", strings.NewReader(""), 0, "text/plain"), ErrInvalidPath)
}
