package upload

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Upload.Dir = t.TempDir()
	conf.Upload.MaxBytes = maxBytes
	store, err := NewStore(conf)
	require.NoError(t, err)
	return store
}

func TestStore_SaveAndPath(t *testing.T) {
	store := newTestStore(t, 64)

	f, err := store.Save("../../Homework.PDF", "application/pdf", strings.NewReader("my essay"))
	require.NoError(t, err)
	assert.True(t, ValidKey(f.Key))
	assert.True(t, strings.HasSuffix(f.Key, ".pdf"))
	assert.Equal(t, "Homework.PDF", f.Filename)
	assert.Equal(t, int64(8), f.Size)

	fp, err := store.Path(f.Key)
	require.NoError(t, err)
	data, err := os.ReadFile(fp)
	require.NoError(t, err)
	assert.Equal(t, "my essay", string(data))
}

func TestStore_TooLarge(t *testing.T) {
	store := newTestStore(t, 4)
	_, err := store.Save("big.txt", "", strings.NewReader("12345"))
	assert.Equal(t, ErrTooLarge, err)

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Path(t *testing.T) {
	store := newTestStore(t, 4)
	tests := []struct {
		key     string
		wantErr error
	}{
		{key: "../../etc/passwd", wantErr: ErrInvalidKey},
		{key: "8c4a4a5e-5ad0-4d8a-9f6c-0c3f2a1b7e10/../x", wantErr: ErrInvalidKey},
		{key: "8c4a4a5e-5ad0-4d8a-9f6c-0c3f2a1b7e10.pdf", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		_, err := store.Path(tt.key)
		assert.Equal(t, tt.wantErr, err, tt.key)
	}
}
