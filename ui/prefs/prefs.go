// Package prefs persists viewer preferences between runs.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appDir    = "fundus-viewer"
	prefsFile = "preferences.yaml"

	// MaxRecent bounds the recent files list.
	MaxRecent = 8
)

// Preference keys.
const (
	KeyLastDir     = "last_dir"
	KeyTool        = "tool"
	KeyShowBase    = "show_base"
	KeyShowSegment = "show_segment"
	KeyShowAnnot   = "show_annotate"
	KeyWindowW     = "window_width"
	KeyWindowH     = "window_height"
)

type document struct {
	Values map[string]interface{} `yaml:"values"`
	Recent []string               `yaml:"recent,omitempty"`
}

// Prefs stores preferences as a key-value map plus a recent files list.
type Prefs struct {
	mu   sync.RWMutex
	doc  document
	path string
}

// DefaultPath returns the preferences file under the user config dir.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, prefsFile)
}

// Load reads preferences from DefaultPath. A missing or unreadable file
// yields empty preferences.
func Load() *Prefs {
	p, err := LoadFrom(DefaultPath())
	if err != nil {
		return newPrefs(DefaultPath())
	}
	return p
}

// LoadFrom reads preferences from path. A missing file is not an error.
func LoadFrom(path string) (*Prefs, error) {
	p := newPrefs(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &p.doc); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	if p.doc.Values == nil {
		p.doc.Values = make(map[string]interface{})
	}
	return p, nil
}

func newPrefs(path string) *Prefs {
	return &Prefs{path: path, doc: document{Values: make(map[string]interface{})}}
}

// Path returns the file the preferences are saved to.
func (p *Prefs) Path() string {
	return p.path
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := yaml.Marshal(&p.doc)
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Float returns a float64 preference, or fallback if not set.
func (p *Prefs) Float(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch n := p.doc.Values[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.set(key, val)
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, _ := p.doc.Values[key].(string)
	return s
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.set(key, val)
}

// Bool returns a bool preference, or fallback if not set.
func (p *Prefs) Bool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.doc.Values[key].(bool); ok {
		return b
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) {
	p.set(key, val)
}

func (p *Prefs) set(key string, val interface{}) {
	p.mu.Lock()
	p.doc.Values[key] = val
	p.mu.Unlock()
}

// Recent returns recently opened files, newest first.
func (p *Prefs) Recent() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.doc.Recent...)
}

// AddRecent moves path to the front of the recent files list.
func (p *Prefs) AddRecent(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recent := []string{path}
	for _, r := range p.doc.Recent {
		if r != path && len(recent) < MaxRecent {
			recent = append(recent, r)
		}
	}
	p.doc.Recent = recent
}

// RemoveRecent drops path from the recent files list.
func (p *Prefs) RemoveRecent(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recent := p.doc.Recent[:0]
	for _, r := range p.doc.Recent {
		if r != path {
			recent = append(recent, r)
		}
	}
	p.doc.Recent = recent
}
