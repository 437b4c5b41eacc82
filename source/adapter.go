package source

import (
	"context"
	"fmt"

	"sluice/internal/frame"
	"sluice/internal/objstore"
)

// Config is what every source driver receives from the compiler.
type Config struct {
	Input     objstore.URI
	Store     objstore.Store
	Delimiter rune
	Header    bool
}

// Adapter reads one input into a frame. Each row's provenance is the URI of
// the object it came from.
type Adapter interface {
	Configure(Config) error
	Read(context.Context) (*frame.Frame, error)
	Close() error
}

// Factory builds an Adapter.
type Factory func() Adapter

var registry = map[string]Factory{}

// Register is called from each driver's init().
func Register(name string, f Factory) {
	registry[name] = f
}

func NewAdapter(name string) (Adapter, error) {
	if f, ok := registry[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("source: unsupported kind %q", name)
}
