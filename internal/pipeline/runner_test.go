package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sluice/internal/frame"
	"sluice/internal/transform"
	"sluice/source"
)

type fakeSource struct {
	f      *frame.Frame
	err    error
	closed bool
}

func (s *fakeSource) Configure(source.Config) error { return nil }
func (s *fakeSource) Read(context.Context) (*frame.Frame, error) {
	return s.f, s.err
}
func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type captureSink struct {
	written []*frame.Frame
	err     error
	panics  bool
	closed  bool
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Write(_ context.Context, f *frame.Frame) error {
	if c.panics {
		panic("boom")
	}
	c.written = append(c.written, f)
	return c.err
}
func (c *captureSink) Close() error {
	c.closed = true
	return nil
}

func makeFrame() *frame.Frame {
	f := frame.New([]string{"Data da Coleta"})
	f.Append([]any{"01/07/2022"}, "gs://raw/in.csv")
	return f
}

func TestRunner_FailingSinkDoesNotBlockNext(t *testing.T) {
	r := NewRunner("run1")
	r.SetSource(&fakeSource{f: makeFrame()})
	r.AddStage(transform.NormalizeColumnsStage())
	failing := &captureSink{err: errors.New("bucket not found")}
	ok := &captureSink{}
	r.AddSink("objectstore", failing)
	r.AddSink("warehouse", ok)

	rep := r.Run(t.Context())
	require.Len(t, rep.Sinks, 2)
	assert.EqualError(t, rep.Sinks[0].Err, "bucket not found")
	assert.NoError(t, rep.Sinks[1].Err)
	require.Len(t, ok.written, 1)
	assert.Equal(t, []string{"data_da_coleta"}, ok.written[0].Columns())

	assert.False(t, rep.OK())
	assert.ErrorContains(t, rep.Err(), "sink objectstore: bucket not found")
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestRunner_PanickingSinkIsRecovered(t *testing.T) {
	r := NewRunner("run1")
	r.SetSource(&fakeSource{f: makeFrame()})
	next := &captureSink{}
	r.AddSink("objectstore", &captureSink{panics: true})
	r.AddSink("warehouse", next)

	rep := r.Run(t.Context())
	assert.ErrorContains(t, rep.Sinks[0].Err, "panic: boom")
	assert.Len(t, next.written, 1)
}

func TestRunner_StageFailureSkipsSinks(t *testing.T) {
	r := NewRunner("run1")
	src := &fakeSource{f: makeFrame()}
	r.SetSource(src)
	r.AddStage(transform.AddYearStage("missing_column"))
	s := &captureSink{}
	r.AddSink("objectstore", s)

	rep := r.Run(t.Context())
	assert.ErrorContains(t, rep.TransformErr, "stage add_year")
	assert.Empty(t, rep.Sinks)
	assert.Empty(t, s.written)
	assert.Equal(t, 1, rep.RowsRead)
	assert.True(t, src.closed)
}

func TestRunner_SourceError(t *testing.T) {
	r := NewRunner("run1")
	r.SetSource(&fakeSource{err: errors.New("403")})
	rep := r.Run(t.Context())
	assert.ErrorContains(t, rep.Err(), "read source: 403")
}

func TestRunner_NoSource(t *testing.T) {
	rep := NewRunner("run1").Run(t.Context())
	assert.ErrorContains(t, rep.Err(), "no source configured")
}

func TestBrokenSink(t *testing.T) {
	r := NewRunner("run1")
	r.SetSource(&fakeSource{f: makeFrame()})
	r.AddSink("objectstore", brokenSink{err: errors.New("configure: bad format")})
	next := &captureSink{}
	r.AddSink("warehouse", next)

	rep := r.Run(t.Context())
	assert.ErrorContains(t, rep.Sinks[0].Err, "bad format")
	assert.Len(t, next.written, 1)
}
