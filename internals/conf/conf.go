package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Oudwins/walletgate/internals/env"
	"github.com/Oudwins/walletgate/internals/version"

	z "github.com/Oudwins/zog"
)

const (
	DefaultDataDir = "~/.walletgate"
	DefaultScryptN = 1 << 15
	FileName       = "walletgate.json"
)

type Config struct {
	Version string        `json:"-"`
	DataDir string        `json:"data_dir" zog:"data_dir"`
	Log     LogConfig     `json:"log" zog:"log"`
	Wallets WalletsConfig `json:"wallets" zog:"wallets"`
	UI      UIConfig      `json:"ui" zog:"ui"`
	Debug   DebugConfig   `json:"debug" zog:"debug"`
}

type LogConfig struct {
	Level string `json:"level" zog:"level"`
}

type WalletsConfig struct {
	DBFile  string `json:"db_file" zog:"db_file"`
	ScryptN int    `json:"scrypt_n" zog:"scrypt_n"`
}

type UIConfig struct {
	ProgressDelay string `json:"progress_delay" zog:"progress_delay"`
}

type DebugConfig struct {
	Addr string `json:"addr" zog:"addr"`
}

var logSchema = z.Struct(z.Shape{
	"Level": z.String().Default("info").OneOf([]string{"debug", "info", "warn", "error"}),
})

var walletsSchema = z.Struct(z.Shape{
	"DBFile":  z.String().Default("wallets.db").Transform(expandPathTransform),
	"ScryptN": z.Int().Default(DefaultScryptN).TestFunc(isPowerOfTwo, z.Message("scrypt_n must be a power of two greater than 1")),
})

var uiSchema = z.Struct(z.Shape{
	"ProgressDelay": z.String().Default("150ms").TestFunc(isDuration, z.Message("progress_delay must be a duration")),
})

var debugSchema = z.Struct(z.Shape{
	"Addr": z.String().Optional().Trim(),
})

var ConfigSchema = z.Struct(z.Shape{
	"DataDir": z.String().Default(DefaultDataDir).Transform(expandPathTransform),
	"Log":     logSchema,
	"Wallets": walletsSchema,
	"UI":      uiSchema,
	"Debug":   debugSchema,
})

var config *Config

// GetConfig loads the configuration once and exits the process when it is
// invalid.
func GetConfig() *Config {
	if config == nil {
		loaded, err := Load(env.Get())
		if err != nil {
			log.Fatal("[Walletgate] Failed to load config ", err)
		}
		config = loaded
	}
	return config
}

// Load builds the configuration from defaults, the optional config file in
// the data dir and the environment, in increasing precedence.
func Load(e *env.EnvStruct) (*Config, error) {
	dataDir := DefaultDataDir
	if e != nil && e.DATA_DIR != "" {
		dataDir = e.DATA_DIR
	}
	dataDir, err := expandPath(dataDir)
	if err != nil {
		return nil, fmt.Errorf("expand data dir: %w", err)
	}

	payload, err := readFile(filepath.Join(filepath.Clean(dataDir), FileName))
	if err != nil {
		return nil, err
	}
	if _, ok := payload["data_dir"]; !ok || (e != nil && e.DATA_DIR != "") {
		payload["data_dir"] = dataDir
	}
	if e != nil {
		overrideSection(payload, "log", "level", e.LOG_LEVEL)
		overrideSection(payload, "debug", "addr", e.DEBUG_ADDR)
	}

	parsed := &Config{}
	if errs := ConfigSchema.Parse(payload, parsed); errs != nil {
		return nil, fmt.Errorf("invalid config:\n%s", z.Issues.Prettify(errs))
	}
	parsed.Version = version.Version()
	return parsed, nil
}

func readFile(path string) (map[string]any, error) {
	payload := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return payload, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return payload, nil
}

func overrideSection(payload map[string]any, section, key, value string) {
	if value == "" {
		return
	}
	inner, ok := payload[section].(map[string]any)
	if !ok {
		inner = map[string]any{}
		payload[section] = inner
	}
	inner[key] = value
}

// DBPath is the wallet database file; relative names live in the data dir.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Wallets.DBFile) {
		return c.Wallets.DBFile
	}
	return filepath.Join(c.DataDir, c.Wallets.DBFile)
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "walletgate.log")
}

func (c *Config) ProgressDelay() time.Duration {
	d, err := time.ParseDuration(c.UI.ProgressDelay)
	if err != nil {
		return 0
	}
	return d
}

func isPowerOfTwo(n *int, ctx z.Ctx) bool {
	return *n > 1 && *n&(*n-1) == 0
}

func isDuration(s *string, ctx z.Ctx) bool {
	d, err := time.ParseDuration(*s)
	return err == nil && d >= 0
}

func expandPathTransform(ptr *string, c z.Ctx) error {
	expanded, err := expandPath(*ptr)
	*ptr = expanded
	return err
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
