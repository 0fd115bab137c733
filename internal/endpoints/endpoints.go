package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-rpc-client/pkg/rpc"
	"gopkg.in/yaml.v3"
)

// configFile represents the structure of the endpoints configuration file.
type configFile struct {
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`
}

// Endpoint is a named RPC target declared in config files.
type Endpoint struct {
	Name    string `json:"name" yaml:"name"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`
}

// Registry materializes endpoint definitions loaded from config files.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	idx       map[string]Endpoint
}

// LoadRegistry loads the endpoint registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("endpoints file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open endpoints file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}

	parsed, err := parseEndpoints(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Endpoints) == 0 {
		return nil, errors.New("endpoints file contains no endpoints entries")
	}

	reg := &Registry{
		endpoints: make([]Endpoint, len(parsed.Endpoints)),
		idx:       make(map[string]Endpoint, len(parsed.Endpoints)),
	}
	for i := range parsed.Endpoints {
		ep := sanitizeEndpoint(parsed.Endpoints[i])
		if err := validateEndpoint(ep); err != nil {
			return nil, fmt.Errorf("endpoints[%d]: %w", i, err)
		}
		if _, exists := reg.idx[ep.Name]; exists {
			return nil, fmt.Errorf("duplicate endpoint name %q", ep.Name)
		}
		reg.endpoints[i] = ep
		reg.idx[ep.Name] = ep
	}

	return reg, nil
}

// parseEndpoints attempts to decode the endpoints file content.
func parseEndpoints(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	known := false
	for _, d := range decoders {
		if ext == d.ext {
			known = true
		}
	}

	for _, d := range decoders {
		if known && ext != d.ext {
			continue
		}
		var out configFile
		if err := d.fn(data, &out); err == nil {
			return out, nil
		}
	}

	return configFile{}, errors.New("endpoints file format not recognized (expected YAML or JSON)")
}

// sanitizeEndpoint trims and normalizes the endpoint fields.
func sanitizeEndpoint(ep Endpoint) Endpoint {
	ep.Name = strings.TrimSpace(ep.Name)
	ep.Host = strings.TrimSpace(ep.Host)
	ep.Path = strings.TrimSpace(ep.Path)
	if !strings.HasPrefix(ep.Path, "/") {
		ep.Path = "/" + ep.Path
	}
	if ep.Enabled == nil {
		def := true
		ep.Enabled = &def
	}
	return ep
}

// validateEndpoint checks that required fields are present.
func validateEndpoint(ep Endpoint) error {
	if ep.Name == "" {
		return errors.New("name is required")
	}
	if ep.Host == "" {
		return fmt.Errorf("host is required for endpoint %q", ep.Name)
	}
	if ep.Port <= 0 || ep.Port > math.MaxUint16 {
		return fmt.Errorf("port %d out of range for endpoint %q", ep.Port, ep.Name)
	}
	return nil
}

// ByName returns the endpoint with the given name.
func (r *Registry) ByName(name string) (Endpoint, bool) {
	if r == nil {
		return Endpoint{}, false
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Endpoint{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.idx[name]
	return ep, ok
}

// All returns all configured endpoints in file order.
func (r *Registry) All() []Endpoint {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Enabled returns endpoints that are enabled.
func (r *Registry) Enabled() []Endpoint {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if ep.EnabledValue() {
			out = append(out, ep)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (ep Endpoint) EnabledValue() bool {
	if ep.Enabled == nil {
		return true
	}
	return *ep.Enabled
}

// URL renders the http URL the endpoint is reached at.
func (ep Endpoint) URL() string {
	return rpc.EndpointURL(ep.Host, uint16(ep.Port), ep.Path)
}
