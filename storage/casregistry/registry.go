// Package casregistry lets archive backends register themselves and their
// flags so binaries can pick one with --backend at run time.
package casregistry

import (
	"flag"
	"fmt"
	"sort"
	"strings"
	"sync"

	"xdao.co/trustchain/storage"
)

// Backend opens one storage.CAS implementation from flag values.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend flags to fs. Called at most once per FlagSet.
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the CAS from parsed flag values. The close func may be nil.
	Open func() (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b. Names are unique.
func Register(b Backend) error {
	switch {
	case b.Name == "":
		return fmt.Errorf("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends allowed for usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted names of backends allowed for usage.
func Names(usage Usage) []string {
	bs := List(usage)
	names := make([]string, 0, len(bs))
	for _, b := range bs {
		names = append(names, b.Name)
	}
	return names
}

// RegisterFlags adds a --backend selector plus every allowed backend's flags
// to fs, and returns a pointer to the selected name. One FlagSet carries all
// backend flags because the flag package rejects unknown flags.
func RegisterFlags(fs *flag.FlagSet, usage Usage, def string) *string {
	name := fs.String("backend", def, "archive backend ("+strings.Join(Names(usage), ", ")+")")
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
	return name
}

// Open opens the named backend if it is allowed for usage.
func Open(name string, usage Usage) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown archive backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("archive backend %q not available in this binary", name)
	}
	cas, closeFn, err := b.Open()
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return cas, closeFn, nil
}
