package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"strictparent/internal/hier"
	"strictparent/internal/manifest"
)

// ErrInvalidConfig wraps every validation failure of strictparent.toml.
var ErrInvalidConfig = errors.New("invalid project configuration")

// Config mirrors strictparent.toml.
type Config struct {
	Check CheckConfig `toml:"check"`
	Files FilesConfig `toml:"files"`
}

type CheckConfig struct {
	// Shadow is "direct" or "ancestry".
	Shadow string `toml:"shadow"`
	// Baseline extends the default baseline names.
	Baseline []string `toml:"baseline"`
	// Root renames the implicit root class.
	Root        string   `toml:"root"`
	RootMembers []string `toml:"root_members"`

	MaxDiagnostics   int  `toml:"max_diagnostics"`
	Jobs             int  `toml:"jobs"`
	WarningsAsErrors bool `toml:"warnings_as_errors"`
}

type FilesConfig struct {
	Suffix  string   `toml:"suffix"`
	Exclude []string `toml:"exclude"`
}

// Project is a loaded configuration together with its location.
type Project struct {
	Path   string
	Root   string
	Config Config
}

// Default returns the configuration used when no strictparent.toml exists.
func Default() Config {
	return Config{
		Check: CheckConfig{Shadow: hier.ShadowDirect.String(), MaxDiagnostics: 200},
		Files: FilesConfig{Suffix: manifest.Suffix},
	}
}

// Load walks up from startDir and loads the first strictparent.toml.
// The second result is false when no configuration file exists.
func Load(startDir string) (*Project, bool, error) {
	path, ok, err := FindConfig(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, true, err
	}
	return &Project{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

// LoadConfig decodes and validates a configuration file.
// Missing keys keep their Default values.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalidConfig, strings.Join(keys, ", "))
	}
	if meta.IsDefined("files", "suffix") && strings.TrimSpace(cfg.Files.Suffix) == "" {
		return Config{}, fmt.Errorf("%s: %w: [files].suffix is empty", path, ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := hier.ParseShadowScope(c.Check.Shadow); err != nil {
		return fmt.Errorf("%w: [check].shadow: %w", ErrInvalidConfig, err)
	}
	if c.Check.Jobs < 0 {
		return fmt.Errorf("%w: [check].jobs must not be negative", ErrInvalidConfig)
	}
	if c.Check.MaxDiagnostics < 0 {
		return fmt.Errorf("%w: [check].max_diagnostics must not be negative", ErrInvalidConfig)
	}
	if slices.Contains(c.Check.RootMembers, "") || slices.Contains(c.Check.Baseline, "") {
		return fmt.Errorf("%w: empty member name", ErrInvalidConfig)
	}
	return nil
}

// Options builds registry options from the [check] section.
func (c Config) Options() (hier.Options, error) {
	scope, err := hier.ParseShadowScope(c.Check.Shadow)
	if err != nil {
		return hier.Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	opts := hier.Options{
		Policy: hier.Policy{
			Shadow:   scope,
			Baseline: hier.DefaultBaseline.With(normalizeAll(c.Check.Baseline)...),
		},
		RootName: manifest.NormalizeName(c.Check.Root),
	}
	if c.Check.RootMembers != nil {
		opts.RootMembers = normalizeAll(c.Check.RootMembers)
	}
	return opts, nil
}

// Fingerprint identifies every setting that changes check results.
func (c Config) Fingerprint() Digest {
	opts, err := c.Options()
	if err != nil {
		return DigestOf([]byte(err.Error()))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "shadow=%s;root=%s;", opts.Policy.Shadow, opts.RootName)
	fmt.Fprintf(&b, "baseline=%s;", strings.Join(opts.Policy.Baseline.Names(), ","))
	fmt.Fprintf(&b, "root_members=%v;", opts.RootMembers)
	fmt.Fprintf(&b, "werror=%t", c.Check.WarningsAsErrors)
	return DigestOf([]byte(b.String()))
}

// Excluded reports whether rel (slash separated, relative to the project
// root) matches one of the [files].exclude globs.
func (c Config) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Files.Exclude {
		if ok, err := filepath.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, filepath.Base(rel)); err == nil && ok {
			return true
		}
	}
	return false
}

func normalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, manifest.NormalizeName(n))
	}
	return out
}

// Template is the content written by `strictparent init`.
const Template = `# strictparent project configuration

[check]
# direct: only members declared directly by a base must be marked "overrides".
# ancestry: any member reachable through a base must be marked.
shadow = "direct"
# Extra names exempt from override checks.
baseline = []
max_diagnostics = 200
jobs = 0
warnings_as_errors = false

[files]
suffix = ".classes.toml"
exclude = []
`

// WriteTemplate creates strictparent.toml in dir. Existing files are kept
// unless force is set.
func WriteTemplate(dir string, force bool) (string, error) {
	path := filepath.Join(dir, ConfigName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return path, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
