package clientcli

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the default server endpoint URL.
const DefaultEndpoint = "http://localhost:8000"

// Environment variables read by blobkeep-cli.
const (
	EnvEndpoint = "BLOBKEEP_ENDPOINT"
	EnvProfile  = "BLOBKEEP_PROFILE"
	EnvConfig   = "BLOBKEEP_CLI_CONFIG"
)

// Profile is a named server endpoint.
type Profile struct {
	Name     string
	Endpoint string
}

// Profiles is the blobkeep-cli config file:
//
//	default: local
//	endpoints:
//	  local: http://localhost:8000
//	  prod: https://blobs.example.com
type Profiles struct {
	Default   string            `yaml:"default,omitempty"`
	Endpoints map[string]string `yaml:"endpoints"`
}

// Len returns the number of profiles.
func (p *Profiles) Len() int {
	return len(p.Endpoints)
}

// Set stores endpoint under name and reports whether it replaced an
// existing profile. The first profile ever set becomes the default.
func (p *Profiles) Set(name, endpoint string) (replaced bool) {
	if p.Endpoints == nil {
		p.Endpoints = make(map[string]string)
	}
	_, replaced = p.Endpoints[name]
	p.Endpoints[name] = endpoint
	if p.Default == "" {
		p.Default = name
	}
	return replaced
}

// Remove deletes a profile. Removing the default leaves no default, so
// Resolve falls back to the first remaining name.
func (p *Profiles) Remove(name string) error {
	if _, ok := p.Endpoints[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(p.Endpoints, name)
	if p.Default == name {
		p.Default = ""
	}
	return nil
}

// SetDefault makes name the profile used when none is asked for.
func (p *Profiles) SetDefault(name string) error {
	if _, ok := p.Endpoints[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	p.Default = name
	return nil
}

// DefaultName returns the profile Resolve("") picks, or "" when there are
// no profiles.
func (p *Profiles) DefaultName() string {
	if _, ok := p.Endpoints[p.Default]; ok {
		return p.Default
	}
	names := p.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Resolve returns the named profile, or the default one when name is empty.
func (p *Profiles) Resolve(name string) (Profile, error) {
	if len(p.Endpoints) == 0 {
		return Profile{}, ErrNoProfiles
	}
	if name == "" {
		name = p.DefaultName()
	}
	endpoint, ok := p.Endpoints[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return Profile{Name: name, Endpoint: endpoint}, nil
}

// Names returns the profile names in sorted order.
func (p *Profiles) Names() []string {
	return slices.Sorted(maps.Keys(p.Endpoints))
}

// List returns every profile, sorted by name.
func (p *Profiles) List() []Profile {
	names := p.Names()
	out := make([]Profile, len(names))
	for i, name := range names {
		out[i] = Profile{Name: name, Endpoint: p.Endpoints[name]}
	}
	return out
}

// Save replaces the file at path with the profiles, creating the parent
// directory. Readers see the old or the new file, never a partial one.
func (p *Profiles) Save(path string) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadProfiles reads the config file at path. A missing file is reported
// with an error wrapping os.ErrNotExist.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &p, nil
}

// DefaultConfigPath returns ~/.blobkeep/config.yaml, or "" without a home
// directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".blobkeep", "config.yaml")
}

// Config holds resolved client configuration for a single server.
type Config struct {
	Endpoint string
}

// Validate checks that the endpoint is an absolute http(s) URL.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	return nil
}

// WithDefaults returns a copy of the config with DefaultEndpoint filled in.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &cfg
}
