package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_UploadAndOpen(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	info, err := s.Upload(ctx, "tenants", "planilha.csv", "text/csv", strings.NewReader("a;b\n1;2\n"))
	require.NoError(t, err)
	assert.Equal(t, "tenants", info.Kind)
	assert.Equal(t, "planilha.csv", info.Name)
	assert.EqualValues(t, 8, info.Size)
	assert.FileExists(t, filepath.Join(s.basePath, "uploads", "tenants", info.Path))

	r, got, err := s.Open(ctx, "tenants", info.ID)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n1;2\n", string(data))
	assert.Equal(t, info.ID, got.ID)
}

func TestLocalStorage_SanitizesFilename(t *testing.T) {
	s := newTestStorage(t)

	info, err := s.Upload(context.Background(), "fill", "../../etc/passwd", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, info.Path, "/")
	assert.True(t, strings.HasSuffix(info.Path, "_passwd"))
}

func TestLocalStorage_RejectsInvalidKind(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, kind := range []string{"", "../x", ".meta", "a/b"} {
		t.Run(kind, func(t *testing.T) {
			_, err := s.Upload(ctx, kind, "f.csv", "", strings.NewReader("x"))
			assert.Error(t, err)
		})
	}
}

func TestLocalStorage_ListDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first, err := s.Upload(ctx, "policies", "a.xlsx", "", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := s.Upload(ctx, "policies", "b.xlsx", "", strings.NewReader("b"))
	require.NoError(t, err)

	files, err := s.List(ctx, "policies")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, first.ID, files[0].ID)
	assert.Equal(t, second.ID, files[1].ID)

	empty, err := s.List(ctx, "reference")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.Delete(ctx, "policies", first.ID))
	_, err = s.GetInfo(ctx, "policies", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(s.basePath, "uploads", "policies", first.Path))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Delete(ctx, "policies", uuid.New()), ErrNotFound)
}
