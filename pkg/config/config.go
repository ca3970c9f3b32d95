/*
Package config manages the TOML config of keyserve commands.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/keyserve/internal/utils"
	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Dict    DictConfig    `toml:"dict"`
	Query   QueryConfig   `toml:"query"`
	Server  ServerConfig  `toml:"server"`
	Compile CompileConfig `toml:"compile"`
}

// DictConfig selects the index file and how it is paged in.
type DictConfig struct {
	Path            string                     `toml:"path"`
	LoadingStrategy dictionary.LoadingStrategy `toml:"loading_strategy"`
}

// QueryConfig holds query defaults shared by the server and the CLI.
type QueryConfig struct {
	DefaultCutoff   int `toml:"default_cutoff"`
	MaxEditDistance int `toml:"max_edit_distance"`
	MinPrefix       int `toml:"min_prefix"`
	MaxPrefix       int `toml:"max_prefix"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxResults int `toml:"max_results"`
	Workers    int `toml:"workers"`
}

// CompileConfig holds defaults for building index files.
type CompileConfig struct {
	ValueType            string `toml:"value_type"`
	Compression          string `toml:"compression"`
	CompressionThreshold int    `toml:"compression_threshold"`
	Weighted             bool   `toml:"weighted"`
	Workers              int    `toml:"workers"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/keyserve
// 2. ~/Library/Application Support/keyserve (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "keyserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "keyserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/keyserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Dict: DictConfig{
			Path:            "keyserve.ksd",
			LoadingStrategy: dictionary.DefaultOS,
		},
		Query: QueryConfig{
			DefaultCutoff:   24,
			MaxEditDistance: 2,
			MinPrefix:       1,
			MaxPrefix:       60,
		},
		Server: ServerConfig{
			MaxResults: 64,
			Workers:    4,
		},
		Compile: CompileConfig{
			ValueType:            dictionary.ValueKeyOnly.String(),
			Compression:          dictionary.CompressionNone.String(),
			CompressionThreshold: dictionary.DefaultCompressionThreshold,
			Weighted:             false,
			Workers:              4,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. A file that fails to decode as a whole
// is parsed again section by section, keeping every value of the right type.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.sanitize()
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "dict"); ok {
		extractDictConfig(section, &config.Dict)
	}
	if section, ok := utils.ExtractSection(tempConfig, "query"); ok {
		extractQueryConfig(section, &config.Query)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "compile"); ok {
		extractCompileConfig(section, &config.Compile)
	}
	config.sanitize()
	return config, nil
}

func extractDictConfig(data map[string]any, dict *DictConfig) {
	if val, ok := utils.ExtractString(data, "path"); ok {
		dict.Path = val
	}
	if val, ok := utils.ExtractString(data, "loading_strategy"); ok {
		s, err := dictionary.ParseLoadingStrategy(val)
		if err != nil {
			log.Warnf("Ignoring loading_strategy: %v", err)
		} else {
			dict.LoadingStrategy = s
		}
	}
}

func extractQueryConfig(data map[string]any, query *QueryConfig) {
	if val, ok := utils.ExtractInt64(data, "default_cutoff"); ok {
		query.DefaultCutoff = val
	}
	if val, ok := utils.ExtractInt64(data, "max_edit_distance"); ok {
		query.MaxEditDistance = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		query.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		query.MaxPrefix = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_results"); ok {
		server.MaxResults = val
	}
	if val, ok := utils.ExtractInt64(data, "workers"); ok {
		server.Workers = val
	}
}

func extractCompileConfig(data map[string]any, compile *CompileConfig) {
	if val, ok := utils.ExtractString(data, "value_type"); ok {
		compile.ValueType = val
	}
	if val, ok := utils.ExtractString(data, "compression"); ok {
		compile.Compression = val
	}
	if val, ok := utils.ExtractInt64(data, "compression_threshold"); ok {
		compile.CompressionThreshold = val
	}
	if val, ok := utils.ExtractBool(data, "weighted"); ok {
		compile.Weighted = val
	}
	if val, ok := utils.ExtractInt64(data, "workers"); ok {
		compile.Workers = val
	}
}

// sanitize replaces out of range values with defaults.
func (c *Config) sanitize() {
	def := DefaultConfig()
	fix := func(name string, v *int, ok bool, fallback int) {
		if !ok {
			log.Warnf("Config value %s=%d out of range, using %d", name, *v, fallback)
			*v = fallback
		}
	}
	q := &c.Query
	fix("query.default_cutoff", &q.DefaultCutoff, q.DefaultCutoff >= 0, def.Query.DefaultCutoff)
	fix("query.max_edit_distance", &q.MaxEditDistance,
		q.MaxEditDistance >= 0 && q.MaxEditDistance <= dictionary.MaxEditDistance, def.Query.MaxEditDistance)
	fix("query.min_prefix", &q.MinPrefix, q.MinPrefix >= 0, def.Query.MinPrefix)
	fix("query.max_prefix", &q.MaxPrefix, q.MaxPrefix >= q.MinPrefix, def.Query.MaxPrefix)
	fix("server.max_results", &c.Server.MaxResults, c.Server.MaxResults > 0, def.Server.MaxResults)
	fix("server.workers", &c.Server.Workers, c.Server.Workers > 0, def.Server.Workers)
	fix("compile.compression_threshold", &c.Compile.CompressionThreshold,
		c.Compile.CompressionThreshold > 0, def.Compile.CompressionThreshold)
	fix("compile.workers", &c.Compile.Workers, c.Compile.Workers > 0, def.Compile.Workers)
}

// CompilerOptions turns the compile section into dictionary compiler
// options.
func (c CompileConfig) CompilerOptions() ([]dictionary.CompilerOption, error) {
	vt, err := dictionary.ParseValueType(c.ValueType)
	if err != nil {
		return nil, err
	}
	codec, err := dictionary.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	opts := []dictionary.CompilerOption{
		dictionary.WithValueType(vt),
		dictionary.WithCompression(codec, c.CompressionThreshold),
	}
	if c.Weighted {
		opts = append(opts, dictionary.WithWeights())
	}
	return opts, nil
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
