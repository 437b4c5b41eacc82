package sink

import (
	"context"
	"fmt"

	"sluice/internal/encode"
	"sluice/internal/frame"
)

// ErrUnsupportedFormat is returned by sinks asked for a format they cannot
// write.
var ErrUnsupportedFormat = encode.ErrUnsupportedFormat

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error                             // driver-specific config struct
	Write(ctx context.Context, f *frame.Frame) error // write the whole frame once
	Close() error                                    // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
