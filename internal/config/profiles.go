package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoConfig = errors.New("no config selected")

const DefaultLabel = "Default"

// DefaultRoot is the per-user config directory.
func DefaultRoot() string {
	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "mangaext")
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mangaext")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mangaext")
}

// Profiles is a directory of labelled config files plus a marker naming
// the active one:
//
//	<root>/configs/<label>.yaml
//	<root>/current_config
type Profiles struct {
	Root string
}

func DefaultProfiles() Profiles {
	return Profiles{Root: DefaultRoot()}
}

func (p Profiles) Dir() string {
	return filepath.Join(p.Root, "configs")
}

func (p Profiles) markerFile() string {
	return filepath.Join(p.Root, "current_config")
}

func (p Profiles) ensureDirs() error {
	return os.MkdirAll(p.Dir(), 0755)
}

func checkLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("label %q cannot contain path separators", label)
	}

	return nil
}

// Path is where the profile with label lives, whether or not it exists.
func (p Profiles) Path(label string) string {
	return filepath.Join(p.Dir(), label+".yaml")
}

func (p Profiles) exists(label string) bool {
	_, err := os.Stat(p.Path(label))
	return err == nil
}

// Active returns the active label and its file. ErrNoConfig means none is
// selected yet.
func (p Profiles) Active() (string, string, error) {
	b, err := os.ReadFile(p.markerFile())
	if errors.Is(err, os.ErrNotExist) {
		return "", "", ErrNoConfig
	}
	if err != nil {
		return "", "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", "", ErrNoConfig
	}

	return label, p.Path(label), nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func (p Profiles) List() ([]ConfigInfo, error) {
	if err := p.ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.Dir())
	if err != nil {
		return nil, err
	}

	active, _, _ := p.Active()

	var out []ConfigInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}

		label := strings.TrimSuffix(e.Name(), ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   p.Path(label),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (p Profiles) Switch(label string) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	if !p.exists(label) {
		return fmt.Errorf("config %q does not exist", label)
	}

	return os.WriteFile(p.markerFile(), []byte(label), 0644)
}

// Create writes cfg under a new label.
func (p Profiles) Create(label string, cfg *Config) (string, error) {
	if err := checkLabel(label); err != nil {
		return "", err
	}
	if err := p.ensureDirs(); err != nil {
		return "", err
	}
	if p.exists(label) {
		return "", fmt.Errorf("config %q already exists", label)
	}

	path := p.Path(label)
	if err := SaveYAML(cfg, path); err != nil {
		return "", err
	}

	return path, nil
}

// Import copies an existing YAML file in as a new profile after checking
// that it parses.
func (p Profiles) Import(label, src string) error {
	cfg, err := LoadYAML(src)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", src, err)
	}

	_, err = p.Create(label, cfg)
	return err
}

func (p Profiles) Rename(oldLabel, newLabel string) error {
	if err := checkLabel(newLabel); err != nil {
		return err
	}
	if !p.exists(oldLabel) {
		return fmt.Errorf("config %q does not exist", oldLabel)
	}
	if p.exists(newLabel) {
		return fmt.Errorf("config %q already exists", newLabel)
	}

	if err := os.Rename(p.Path(oldLabel), p.Path(newLabel)); err != nil {
		return err
	}

	if active, _, _ := p.Active(); active == oldLabel {
		return os.WriteFile(p.markerFile(), []byte(newLabel), 0644)
	}

	return nil
}

// Remove deletes a profile. Removing the active one falls back to Default;
// Default itself cannot be removed.
func (p Profiles) Remove(label string) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	if label == DefaultLabel {
		return errors.New("cannot remove the Default config")
	}
	if !p.exists(label) {
		return fmt.Errorf("config %q does not exist", label)
	}

	if active, _, _ := p.Active(); active == label {
		if err := p.Switch(DefaultLabel); err != nil {
			return fmt.Errorf("failed switching to Default: %w", err)
		}
	}

	return os.Remove(p.Path(label))
}

// Reset overwrites a profile with the defaults.
func (p Profiles) Reset(label string) error {
	if !p.exists(label) {
		return fmt.Errorf("config %q does not exist", label)
	}

	return SaveYAML(DefaultConfig(), p.Path(label))
}

// InitDefault creates the Default profile if needed and makes it active.
// os.ErrExist reports that it was already there.
func (p Profiles) InitDefault() (string, error) {
	if err := p.ensureDirs(); err != nil {
		return "", err
	}

	path := p.Path(DefaultLabel)
	existed := p.exists(DefaultLabel)
	if !existed {
		if err := SaveYAML(DefaultConfig(), path); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(p.markerFile(), []byte(DefaultLabel), 0644); err != nil {
		return "", err
	}

	if existed {
		return path, os.ErrExist
	}

	return path, nil
}
