package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/doorman/pkg/domain"
	"gopkg.in/yaml.v3"
)

// CallersFile is the on-disk shape of a scripts file:
//
//	callers:
//	  "+14155551111":
//	    - [say, {value: "Hello world."}]
type CallersFile struct {
	Callers map[string]domain.Script `yaml:"callers" json:"callers"`
}

// Lookup implements ports.ScriptLookup from a YAML or JSON scripts file.
// The file is read by NewLookup and again on Reload.
type Lookup struct {
	path string

	mu      sync.RWMutex
	scripts map[string]domain.Script
}

// NewLookup reads path and returns a Lookup over its callers.
func NewLookup(path string) (*Lookup, error) {
	l := &Lookup{path: path}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load parses a scripts file. Files ending in .json are decoded as JSON,
// anything else as YAML.
func Load(path string) (map[string]domain.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scripts file: %w", err)
	}

	var cfg CallersFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if cfg.Callers == nil {
		cfg.Callers = map[string]domain.Script{}
	}
	return cfg.Callers, nil
}

// Reload re-reads the scripts file. On error the previous scripts are kept.
func (l *Lookup) Reload() error {
	scripts, err := Load(l.path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.scripts = scripts
	l.mu.Unlock()
	return nil
}

// Lookup returns the script for caller or domain.ErrScriptNotFound.
func (l *Lookup) Lookup(ctx context.Context, caller string) (domain.Script, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	script, ok := l.scripts[caller]
	if !ok {
		return nil, fmt.Errorf("%w for %q in %s", domain.ErrScriptNotFound, caller, filepath.Base(l.path))
	}
	if script == nil {
		script = domain.Script{}
	}
	return script, nil
}

// Callers returns the callers in the file, sorted.
func (l *Lookup) Callers(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	callers := make([]string, 0, len(l.scripts))
	for caller := range l.scripts {
		callers = append(callers, caller)
	}
	sort.Strings(callers)
	return callers, nil
}

// Scripts returns a copy of the caller to script map.
func (l *Lookup) Scripts() map[string]domain.Script {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.Script, len(l.scripts))
	for k, v := range l.scripts {
		out[k] = v
	}
	return out
}
