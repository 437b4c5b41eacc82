package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sluice/internal/encode"
	"sluice/internal/frame"
	"sluice/internal/objstore"
	"sluice/sink"
)

func oneRow() *frame.Frame {
	f := frame.New([]string{"municipio", "year"})
	f.Append([]any{"SAO PAULO", int64(2022)}, "gs://raw/in.csv")
	return f
}

func configured(t *testing.T, cfg Config) sink.Adapter {
	t.Helper()
	s, err := sink.NewAdapter("objectstore")
	require.NoError(t, err)
	require.NoError(t, s.Configure(cfg))
	return s
}

func TestWrite_CSVPartAndMarker(t *testing.T) {
	base := t.TempDir()
	out, err := objstore.Parse("gs://curated/precos")
	require.NoError(t, err)

	s := configured(t, Config{Output: out, Store: objstore.NewFileStore(base), Format: "CSV", RunID: "run1"})
	require.NoError(t, s.Write(t.Context(), oneRow()))

	body, err := os.ReadFile(filepath.Join(base, "curated", "precos", "part-00000-run1-c000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "SAO PAULO,2022\n", string(body))

	_, err = os.Stat(filepath.Join(base, "curated", "precos", SuccessMarker))
	assert.NoError(t, err)
}

// markerlessStore refuses to create the success marker.
type markerlessStore struct {
	objstore.Store
}

func (s markerlessStore) Create(ctx context.Context, u objstore.URI, contentType string) (io.WriteCloser, error) {
	if path.Base(u.Key) == SuccessMarker {
		return nil, errors.New("permission denied")
	}
	return s.Store.Create(ctx, u, contentType)
}

func TestWrite_MarkerFailureKeepsPart(t *testing.T) {
	base := t.TempDir()
	out, err := objstore.Parse("gs://curated/precos/")
	require.NoError(t, err)

	s := configured(t, Config{Output: out, Store: markerlessStore{objstore.NewFileStore(base)}, Format: "json", RunID: "run1"})
	err = s.Write(t.Context(), oneRow())
	require.ErrorIs(t, err, ErrNoSuccessMarker)
	assert.ErrorContains(t, err, "part-00000-run1-c000.json written")
	assert.ErrorContains(t, err, "permission denied")

	body, err := os.ReadFile(filepath.Join(base, "curated", "precos", "part-00000-run1-c000.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"municipio":"SAO PAULO","year":2022}`+"\n", string(body))
}

func TestWrite_AppendNeverOverwrites(t *testing.T) {
	base := t.TempDir()
	store := objstore.NewFileStore(base)
	out, err := objstore.Parse("gs://curated/precos/")
	require.NoError(t, err)

	require.NoError(t, configured(t, Config{Output: out, Store: store, Format: "json", RunID: "a"}).Write(t.Context(), oneRow()))
	require.NoError(t, configured(t, Config{Output: out, Store: store, Format: "json", RunID: "b"}).Write(t.Context(), oneRow()))

	objs, err := store.List(context.Background(), out)
	require.NoError(t, err)
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{
		"precos/_SUCCESS",
		"precos/part-00000-a-c000.json",
		"precos/part-00000-b-c000.json",
	}, keys)

	// same run id again: the part exists and must not be replaced
	err = configured(t, Config{Output: out, Store: store, Format: "json", RunID: "a"}).Write(t.Context(), frame.New([]string{"x"}))
	assert.ErrorIs(t, err, objstore.ErrExists)
	body, err := os.ReadFile(filepath.Join(base, "curated", "precos", "part-00000-a-c000.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"municipio":"SAO PAULO","year":2022}`+"\n", string(body))
}

func TestConfigure_UnsupportedFormat(t *testing.T) {
	s, err := sink.NewAdapter("objectstore")
	require.NoError(t, err)
	err = s.Configure(Config{Store: objstore.NewFileStore(""), RunID: "r", Format: "xlsx"})
	assert.ErrorIs(t, err, sink.ErrUnsupportedFormat)

	assert.Error(t, s.Configure("not a config"))
}

func TestPartName(t *testing.T) {
	assert.Equal(t, "part-00000-r-c000.snappy.parquet", PartName("r", encode.Parquet))
}
