package sim

import (
	"fmt"
	"log"
	"strings"
)

const (
	// EngineGrid selects the built-in headless grid engine.
	EngineGrid = "grid"
)

// NewFactory returns the factory for the named engine.
func NewFactory(engine string) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineGrid:
		log.Println("Using headless grid simulation engine")
		return NewGridFactory(), nil
	}
	return nil, fmt.Errorf("unknown simulation engine: %q", engine)
}

// DefaultOptions returns the options every engine starts from.
func DefaultOptions() Options {
	return Options{
		"grid_width":  13,
		"grid_height": 13,
	}
}

// Merge returns the defaults overlaid with opts.
func Merge(defaults, opts Options) Options {
	out := make(Options, len(defaults)+len(opts))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range opts {
		out[k] = v
	}
	return out
}
