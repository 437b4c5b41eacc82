package objstore

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	SchemeGCS  = "gs"
	SchemeFile = "file"
)

// URI addresses one object (or, with a trailing slash, a prefix) in a
// bucket. Local paths use SchemeFile with an empty bucket and the absolute
// path as key.
type URI struct {
	Scheme string
	Bucket string
	Key    string
}

var uriPattern = regexp.MustCompile(`^([a-z][a-z0-9+.-]*)://([^/]*)/?(.*)$`)

// Parse accepts scheme://bucket/key and plain filesystem paths.
func Parse(raw string) (URI, error) {
	if raw == "" {
		return URI{}, fmt.Errorf("empty object uri")
	}
	m := uriPattern.FindStringSubmatch(raw)
	if m == nil {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return URI{}, fmt.Errorf("resolve %q: %w", raw, err)
		}
		if strings.HasSuffix(raw, "/") {
			abs += "/"
		}
		return URI{Scheme: SchemeFile, Key: filepath.ToSlash(abs)}, nil
	}
	u := URI{Scheme: m[1], Bucket: m[2], Key: m[3]}
	if u.Scheme == SchemeFile {
		// file:///tmp/x parses with an empty bucket and key "tmp/x".
		u.Key = "/" + strings.TrimPrefix(u.Bucket+"/"+u.Key, "/")
		u.Bucket = ""
		return u, nil
	}
	if u.Bucket == "" {
		return URI{}, fmt.Errorf("object uri %q has no bucket", raw)
	}
	return u, nil
}

func (u URI) String() string {
	if u.Scheme == SchemeFile {
		return "file://" + u.Key
	}
	return u.Scheme + "://" + u.Bucket + "/" + u.Key
}

// IsPrefix reports whether u names a directory-like prefix.
func (u URI) IsPrefix() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// Join appends elem to the key as a path segment.
func (u URI) Join(elem ...string) URI {
	parts := append([]string{u.Key}, elem...)
	joined := path.Join(parts...)
	if u.Key == "" && u.Scheme != SchemeFile {
		joined = strings.TrimPrefix(joined, "/")
	}
	return URI{Scheme: u.Scheme, Bucket: u.Bucket, Key: joined}
}

// Dir returns u with a trailing slash so it can be used as a prefix.
func (u URI) Dir() URI {
	if u.IsPrefix() {
		return u
	}
	return URI{Scheme: u.Scheme, Bucket: u.Bucket, Key: u.Key + "/"}
}
