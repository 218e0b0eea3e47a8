// Package manifest handles bfc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/cache"
	"github.com/chazu/bfc/pkg/runner"
	"github.com/chazu/bfc/pkg/tape"
	"github.com/chazu/bfc/pkg/toolchain"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "bfc.toml"

// Manifest represents a bfc.toml project configuration.
type Manifest struct {
	Run     Run     `toml:"run"`
	Compile Compile `toml:"compile"`
	Cache   Cache   `toml:"cache"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the bfc.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Run selects how programs are executed.
type Run struct {
	Mode     string `toml:"mode"`
	Frontend string `toml:"frontend"`
	Bounds   string `toml:"bounds"`
}

// Compile configures ahead-of-time builds.
type Compile struct {
	Backend  string `toml:"backend"`
	Compiler string `toml:"compiler"`
	Output   string `toml:"output"`
	Name     string `toml:"name"`
}

// Cache configures the jit chunk cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures diagnostics.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no bfc.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Run.Mode == "" {
		m.Run.Mode = string(runner.ModeJIT)
	}
	if m.Run.Frontend == "" {
		m.Run.Frontend = "grammar"
	}
	if m.Run.Bounds == "" {
		m.Run.Bounds = tape.Checked.String()
	}
	if m.Compile.Backend == "" {
		m.Compile.Backend = toolchain.BackendLLVM
	}
	if m.Compile.Compiler == "" {
		m.Compile.Compiler = toolchain.DefaultCompiler(m.Compile.Backend)
	}
	if m.Compile.Output == "" {
		m.Compile.Output = toolchain.DefaultOutDir
	}
	if m.Compile.Name == "" {
		m.Compile.Name = toolchain.DefaultName
	}
}

// Load parses a bfc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a bfc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects unknown modes, front ends, policies and backends.
func (m *Manifest) Validate() error {
	if _, err := runner.ParseMode(m.Run.Mode); err != nil {
		return fmt.Errorf("run.mode: %w", err)
	}
	if _, err := compiler.FrontendByName(m.Run.Frontend); err != nil {
		return fmt.Errorf("run.frontend: %w", err)
	}
	if _, err := tape.ParsePolicy(m.Run.Bounds); err != nil {
		return fmt.Errorf("run.bounds: %w", err)
	}
	switch m.Compile.Backend {
	case toolchain.BackendLLVM, toolchain.BackendGo:
	default:
		return fmt.Errorf("compile.backend: unknown backend %q (want llvm or go)", m.Compile.Backend)
	}
	if m.Compile.Compiler != "" && strings.TrimSpace(m.Compile.Compiler) == "" {
		return fmt.Errorf("compile.compiler: must not be blank")
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity: must not be negative")
	}
	return nil
}

// resolve makes a manifest-relative path absolute.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// OutputDir returns the compile output directory.
func (m *Manifest) OutputDir() string {
	return m.resolve(m.Compile.Output)
}

// CachePath returns the cache database location, falling back to the
// per-user cache directory.
func (m *Manifest) CachePath() (string, error) {
	if m.Cache.Path != "" {
		return m.resolve(m.Cache.Path), nil
	}
	return cache.DefaultPath()
}

// LogFile returns the log destination, or "" for stderr.
func (m *Manifest) LogFile() string {
	return m.resolve(m.Log.File)
}
