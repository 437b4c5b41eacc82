package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps objects on the local filesystem. Buckets become
// subdirectories of base; with an empty base, file URIs map to their
// absolute path.
type FileStore struct {
	base string
}

func NewFileStore(base string) *FileStore { return &FileStore{base: base} }

func (s *FileStore) path(u URI) string {
	return filepath.Join(s.base, u.Bucket, filepath.FromSlash(u.Key))
}

func (s *FileStore) uri(scheme, bucket, p string) URI {
	rel, err := filepath.Rel(filepath.Join(s.base, bucket), p)
	if err != nil {
		rel = p
	}
	key := filepath.ToSlash(rel)
	if scheme == SchemeFile && s.base == "" && bucket == "" {
		key = filepath.ToSlash(p)
	}
	return URI{Scheme: scheme, Bucket: bucket, Key: key}
}

func (s *FileStore) Open(_ context.Context, u URI) (io.ReadCloser, error) {
	f, err := os.Open(s.path(u))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
		}
		return nil, err
	}
	return f, nil
}

func (s *FileStore) Create(_ context.Context, u URI, _ string) (io.WriteCloser, error) {
	dst := s.path(u)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, err
	}
	return &fileWriter{File: tmp, dst: dst, uri: u}, nil
}

// fileWriter stages into a temp file and links it into place on Close. An
// existing object is never replaced.
type fileWriter struct {
	*os.File
	dst string
	uri URI
}

func (w *fileWriter) Abort() error {
	_ = w.File.Close()
	return os.Remove(w.Name())
}

func (w *fileWriter) Close() error {
	tmp := w.Name()
	defer func() { _ = os.Remove(tmp) }()
	if err := w.File.Close(); err != nil {
		return err
	}
	if err := os.Link(tmp, w.dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, w.uri)
		}
		return err
	}
	return nil
}

func (s *FileStore) List(_ context.Context, u URI) ([]URI, error) {
	root := s.path(u)
	prefix := ""
	if !u.IsPrefix() {
		root, prefix = filepath.Dir(root), filepath.Base(root)
	}
	var out []URI
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if prefix != "" {
			rel, _ := filepath.Rel(root, p)
			if !strings.HasPrefix(rel, prefix) {
				return nil
			}
		}
		out = append(out, s.uri(u.Scheme, u.Bucket, p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, u URI) error {
	if err := os.Remove(s.path(u)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
