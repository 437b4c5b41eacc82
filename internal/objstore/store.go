// Package objstore reads and writes objects addressed by URI. The gs scheme
// is served by Google Cloud Storage and the file scheme by the local
// filesystem; Mux dispatches between them.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrNotFound          = errors.New("object not found")
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
	ErrExists            = errors.New("object already exists")
)

type Store interface {
	// Open returns a reader for the object. Missing objects wrap ErrNotFound.
	Open(ctx context.Context, u URI) (io.ReadCloser, error)
	// Create returns a writer for a new object. The object becomes visible on
	// Close; if it already exists Close fails with ErrExists.
	Create(ctx context.Context, u URI, contentType string) (io.WriteCloser, error)
	// List returns the objects under the prefix u, sorted by key.
	List(ctx context.Context, u URI) ([]URI, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, u URI) error
}

// Aborter is implemented by writers that can discard an upload.
type Aborter interface {
	Abort() error
}

// Abort discards w without creating the object when the writer supports
// it, and closes it otherwise.
func Abort(w io.WriteCloser) {
	if a, ok := w.(Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// Mux routes each call to the store registered for the URI scheme.
type Mux struct {
	stores map[string]Store
}

func NewMux() *Mux { return &Mux{stores: map[string]Store{}} }

func (m *Mux) Handle(scheme string, s Store) *Mux {
	m.stores[scheme] = s
	return m
}

func (m *Mux) store(u URI) (Store, error) {
	s, ok := m.stores[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	return s, nil
}

func (m *Mux) Open(ctx context.Context, u URI) (io.ReadCloser, error) {
	s, err := m.store(u)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, u)
}

func (m *Mux) Create(ctx context.Context, u URI, contentType string) (io.WriteCloser, error) {
	s, err := m.store(u)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, u, contentType)
}

func (m *Mux) List(ctx context.Context, u URI) ([]URI, error) {
	s, err := m.store(u)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, u)
}

func (m *Mux) Delete(ctx context.Context, u URI) error {
	s, err := m.store(u)
	if err != nil {
		return err
	}
	return s.Delete(ctx, u)
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, s Store, u URI) ([]byte, error) {
	r, err := s.Open(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return b, nil
}

// Resolve expands u into the objects it names: the object itself, or every
// object under it when u is a prefix. Hidden objects (leading "_" or ".")
// are skipped when listing.
func Resolve(ctx context.Context, s Store, u URI) ([]URI, error) {
	if !u.IsPrefix() {
		return []URI{u}, nil
	}
	all, err := s.List(ctx, u)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if hidden(o.Key) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no objects under %s", ErrNotFound, u)
	}
	return out, nil
}

func hidden(key string) bool {
	base := key
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			base = key[i+1:]
			break
		}
	}
	return base == "" || base[0] == '_' || base[0] == '.'
}
