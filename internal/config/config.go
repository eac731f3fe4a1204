// Package config loads and holds server configuration. The on-disk
// form is a line-oriented "key value" text file, matching the spec's
// explicit choice of a flat format over a structured one (YAML/TOML)
// — see DESIGN.md for why no config library is used here.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Known recognizes the ten config keys this server understands.
// Unknown keys loaded from a config file are logged and ignored, as
// specified.
var Known = map[string]bool{
	"dbfilename":  true,
	"port":        true,
	"databases":   true,
	"hz":          true,
	"appendonly":  true,
	"appendfsync": true,
	"save":        true,
	"dir":         true,
	"loglevel":    true,
	"bind":        true,
}

// Config holds the mutable, shared configuration fields. All access
// outside of construction goes through Get/Set, which take the
// read/write lock documented in the spec's concurrency model: Get
// takes the read side, Set (CONFIG SET, file load and CLI overrides)
// takes the write side, and no lock is ever held across network or
// persistence I/O.
type Config struct {
	mu sync.RWMutex

	DBFilename  string
	Port        int
	Databases   int
	HZ          int
	AppendOnly  bool
	AppendFsync string
	Save        string
	Dir         string
	LogLevel    string
	Bind        string
}

// Default returns the out-of-the-box configuration.
func Default() *Config {
	return &Config{
		DBFilename:  "dump.rdb",
		Port:        6379,
		Databases:   1,
		HZ:          10,
		AppendOnly:  false,
		AppendFsync: "everysec",
		Save:        "3600 1 300 100 60 10000",
		Dir:         ".",
		LogLevel:    "notice",
		Bind:        "0.0.0.0",
	}
}

// Load reads a line-oriented "key value" file into a fresh Config
// seeded from Default(). Blank lines and lines starting with '#' are
// skipped. Unknown keys are logged at warning level and otherwise
// ignored, per spec.
func Load(path string, log *logrus.Logger) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		key := strings.ToLower(fields[0])
		val := ""
		if len(fields) == 2 {
			val = strings.TrimSpace(fields[1])
		}
		if !Known[key] {
			log.Warnf("config: unknown key %q ignored", key)
			continue
		}
		if err := cfg.Set(key, val); err != nil {
			return nil, fmt.Errorf("config: %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// Get returns the string form of a recognized key's current value, or
// ("", false) if key is not recognized.
func (c *Config) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch strings.ToLower(key) {
	case "dbfilename":
		return c.DBFilename, true
	case "port":
		return strconv.Itoa(c.Port), true
	case "databases":
		return strconv.Itoa(c.Databases), true
	case "hz":
		return strconv.Itoa(c.HZ), true
	case "appendonly":
		return onOff(c.AppendOnly), true
	case "appendfsync":
		return c.AppendFsync, true
	case "save":
		return c.Save, true
	case "dir":
		return c.Dir, true
	case "loglevel":
		return c.LogLevel, true
	case "bind":
		return c.Bind, true
	default:
		return "", false
	}
}

// Set validates and applies val to key. The caller (CONFIG SET or
// Load) is responsible for surfacing the error as the appropriate
// RESP error.
func (c *Config) Set(key, val string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(key) {
	case "dbfilename":
		c.DBFilename = val
	case "port":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid port")
		}
		c.Port = n
	case "databases":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid databases")
		}
		c.Databases = n
	case "hz":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid hz")
		}
		c.HZ = n
	case "appendonly":
		switch val {
		case "yes", "on":
			c.AppendOnly = true
		case "no", "off":
			c.AppendOnly = false
		default:
			return fmt.Errorf("invalid appendonly")
		}
	case "appendfsync":
		switch val {
		case "always", "everysec", "no":
			c.AppendFsync = val
		default:
			return fmt.Errorf("invalid appendfsync")
		}
	case "save":
		c.Save = val
	case "dir":
		if err := os.Chdir(val); err != nil {
			return fmt.Errorf("invalid dir")
		}
		c.Dir = val
	case "loglevel":
		switch val {
		case "debug", "verbose", "notice", "warning":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid loglevel")
		}
	case "bind":
		c.Bind = val
	default:
		return fmt.Errorf("no such configuration")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
