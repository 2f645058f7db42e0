// Package config persists user settings as a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guidoenr/xyscope/internal/params"
)

// FileName is the settings file name used by DefaultPath.
const FileName = "xyscope.json"

// Settings is the on-disk document: a parameter snapshot plus the runtime
// options that make sense to keep between sessions.
type Settings struct {
	Params     params.Snapshot `json:"params"`
	TargetFPS  float64         `json:"targetFps,omitempty"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	Presenter  string          `json:"presenter,omitempty"`
	DoubleCore bool            `json:"doubleCore,omitempty"`
	FFTBackend string          `json:"fftBackend,omitempty"`
	FFTWindow  string          `json:"fftWindow,omitempty"`
}

// Defaults returns settings holding the default parameter values.
func Defaults() Settings {
	return Settings{Params: params.Defaults()}
}

// DefaultPath places the settings file in the user config directory,
// falling back to the home directory.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "xyscope", FileName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+FileName)
}

// Load reads path. Parameters missing from the file keep their defaults
// and every value is clamped to its range. A missing file yields an error
// matching fs.ErrNotExist.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parse %s: %w", path, err)
	}
	s.Params = s.Params.Sanitize()
	return s, nil
}

// Save writes s to path through a temporary file so readers never see a
// partial document.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".xyscope-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
