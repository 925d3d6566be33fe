package bump

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/tsbump/internal/engine"
	"github.com/gnolang/tsbump/internal/resolve"
)

const DefaultConfigFile = ".tsbump.yaml"

// Config is the content of .tsbump.yaml.
type Config struct {
	// Tags is the tag policy: "reachable" or "all".
	Tags string `yaml:"tags"`
	// TagPrefix is prepended to the version when creating a tag.
	TagPrefix  string `yaml:"tag-prefix"`
	TypeScript string `yaml:"typescript"`
	// ScratchDir is where run workspaces are created; the OS temp
	// directory when empty.
	ScratchDir         string   `yaml:"scratch-dir,omitempty"`
	ErrorOnDirty       bool     `yaml:"error-on-dirty"`
	ErrorOnUnreachable bool     `yaml:"error-on-unreachable"`
	TscArgs            []string `yaml:"tsc-args,omitempty"`
	// PackageManager is "npm", "yarn" or "pnpm"; detected from the lock
	// file when empty.
	PackageManager string `yaml:"package-manager,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Tags:       string(resolve.PolicyReachable),
		TypeScript: engine.DefaultTypeScript,
	}
}

// Environment variables overriding the configuration file.
const (
	EnvTags       = "TSBUMP_TAGS"
	EnvTagPrefix  = "TSBUMP_TAG_PREFIX"
	EnvTypeScript = "TSBUMP_TYPESCRIPT"
	EnvScratchDir = "TSBUMP_SCRATCH_DIR"

	EnvPackageManager = "TSBUMP_PACKAGE_MANAGER"
)

// LoadConfig reads the configuration file at path over the defaults, then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	config, err := parseConfigurationFile(path)
	if err != nil {
		return config, err
	}
	config.applyEnv(os.LookupEnv)
	return config, nil
}

func parseConfigurationFile(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil {
		// An empty file decodes to io.EOF.
		if errors.Is(err, io.EOF) {
			return config, nil
		}
		return config, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvTags, &c.Tags)
	set(EnvTagPrefix, &c.TagPrefix)
	set(EnvTypeScript, &c.TypeScript)
	set(EnvScratchDir, &c.ScratchDir)
	set(EnvPackageManager, &c.PackageManager)
}

// WriteConfig writes config to path as YAML.
func WriteConfig(path string, config Config) error {
	if path == "" {
		path = DefaultConfigFile
	}
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d)
	return err
}
