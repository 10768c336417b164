package sites

import (
	"fmt"
	"sort"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]Config)
)

// Register makes a site Config available by name. Registering a name
// twice is an error.
func Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[cfg.Name]; dup {
		return fmt.Errorf("site %q already registered", cfg.Name)
	}
	registry[cfg.Name] = cfg
	return nil
}

// MustRegister is Register for package initialisation.
func MustRegister(cfg Config) {
	if err := Register(cfg); err != nil {
		panic(err)
	}
}

// Lookup returns the Config registered under name.
func Lookup(name string) (Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	cfg, ok := registry[name]
	return cfg, ok
}

// Names lists registered sites in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the Config for a run. Without a file the registered
// Config for name is used. With a file, its fields are merged over the
// template it names, or over name when it names none.
func Resolve(name, file string) (Config, error) {
	if file == "" {
		cfg, ok := Lookup(name)
		if !ok {
			return Config{}, fmt.Errorf("unknown site %q (registered: %v)", name, Names())
		}
		return cfg, nil
	}

	override, err := LoadFile(file)
	if err != nil {
		return Config{}, err
	}
	if override.Name == "" {
		override.Name = name
	}

	template := override.Template
	if template == "" {
		template = name
	}
	base, ok := Lookup(template)
	if !ok {
		if override.Template != "" {
			return Config{}, fmt.Errorf("site %q: unknown template %q", override.Name, override.Template)
		}
		// A self-contained file.
		return override, override.Validate()
	}

	cfg, err := Merge(base, override)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func init() {
	MustRegister(Cafe24)
	MustRegister(Godomall)
}
