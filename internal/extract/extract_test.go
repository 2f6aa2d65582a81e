package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByExtension(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "text", path: write("notes.txt", "  cell biology\r\nmitosis \n"), want: "cell biology\nmitosis"},
		{name: "markdown upper case", path: write("NOTES.MD", "# Cells"), want: "# Cells"},
		{name: "unsupported", path: write("slides.pptx", "binary"), wantErr: ErrUnsupported},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPDF_InvalidFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(p, []byte("not a pdf"), 0o644))

	_, err := PDF{}.Extract(context.Background(), p)
	assert.Error(t, err)
}

func TestText_InvalidUTF8(t *testing.T) {
	p := filepath.Join(t.TempDir(), "latin1.txt")
	require.NoError(t, os.WriteFile(p, []byte{0xff, 0xfe, 0x41}, 0o644))

	_, err := Text{}.Extract(context.Background(), p)
	assert.Error(t, err)
}
