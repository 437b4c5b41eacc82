package warehouse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sluice/internal/frame"
	"sluice/internal/objstore"
	"sluice/internal/transform"
	wh "sluice/internal/warehouse"
	"sluice/sink"
)

type fakeClient struct {
	base   string
	loads  []string
	staged bool
	err    error
}

func (c *fakeClient) LoadParquet(_ context.Context, src string, table wh.TableRef) error {
	u, err := objstore.Parse(src)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(filepath.Join(c.base, u.Bucket, filepath.FromSlash(u.Key)))
	c.staged = statErr == nil
	c.loads = append(c.loads, src+" -> "+table.String())
	return c.err
}

func (c *fakeClient) TableSchema(context.Context, wh.TableRef) (transform.Schema, error) {
	return nil, nil
}

func rows() *frame.Frame {
	f := frame.New([]string{"municipio", "year"})
	f.Append([]any{"SAO PAULO", int64(2022)}, "gs://raw/in.csv")
	return f
}

func newSink(t *testing.T, base string, c *fakeClient) sink.Adapter {
	t.Helper()
	s, err := sink.NewAdapter("warehouse")
	require.NoError(t, err)
	require.NoError(t, s.Configure(Config{
		Table:         wh.TableRef{Dataset: "dc_bq_dataset", Table: "dc_table"},
		Client:        c,
		Store:         objstore.NewFileStore(base),
		StagingBucket: "staging",
		RunID:         "run1",
		Schema:        transform.Schema{{Name: "municipio", Type: "string"}, {Name: "year", Type: "integer"}},
	}))
	return s
}

func TestWrite_StagesLoadsAndCleansUp(t *testing.T) {
	base := t.TempDir()
	c := &fakeClient{base: base}
	require.NoError(t, newSink(t, base, c).Write(t.Context(), rows()))

	assert.Equal(t, []string{"gs://staging/.sluice-staging/run1/part-00000.parquet -> dc_bq_dataset.dc_table"}, c.loads)
	assert.True(t, c.staged, "object present while the load runs")
	_, err := os.Stat(filepath.Join(base, "staging", ".sluice-staging", "run1", "part-00000.parquet"))
	assert.True(t, os.IsNotExist(err), "staged object removed")
}

func TestWrite_LoadFailureStillCleansUp(t *testing.T) {
	base := t.TempDir()
	c := &fakeClient{base: base, err: errors.New("table not found")}
	err := newSink(t, base, c).Write(t.Context(), rows())
	assert.ErrorContains(t, err, "table not found")

	_, statErr := os.Stat(filepath.Join(base, "staging", ".sluice-staging", "run1", "part-00000.parquet"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigure_Validation(t *testing.T) {
	d := &driver{}
	assert.ErrorContains(t, d.Configure(Config{}), "no warehouse client")
	assert.ErrorContains(t, d.Configure(Config{Client: &fakeClient{}, Store: objstore.NewFileStore("")}), "staging bucket")
	assert.Error(t, d.Configure(42))
}
