package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// rawWritePermissions mirrors the on-disk shape of a write_permissions
// block before it is validated into a WritePermissions.
type rawWritePermissions struct {
	DefaultPolicy string                                    `yaml:"default_policy" toml:"default_policy"`
	Resources     map[string]map[string]rawResourcePerm `yaml:",inline" toml:"-"`
}

type rawResourcePerm struct {
	AllowedOps []string `yaml:"allowed_ops" toml:"allowed_ops"`
}

// rawConnection mirrors the on-disk shape of one connections.<name> entry.
type rawConnection struct {
	Type     string `yaml:"type" toml:"type"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Database string `yaml:"database" toml:"database"`
	Path     string `yaml:"path" toml:"path"`
	URI      string `yaml:"uri" toml:"uri"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`

	Writable         bool                 `yaml:"writable" toml:"writable"`
	WritePermissions *rawWritePermissions `yaml:"write_permissions" toml:"write_permissions"`

	TimeoutSeconds       float64 `yaml:"timeout" toml:"timeout"`
	MaxIdleSeconds       float64 `yaml:"max_idle" toml:"max_idle"`
	SweepIntervalSeconds float64 `yaml:"sweep_interval" toml:"sweep_interval"`
}

// rawDocument mirrors the on-disk shape of the whole config file.
type rawDocument struct {
	Connections map[string]rawConnection `yaml:"connections" toml:"connections"`
}

const (
	defaultMaxIdle       = 300 * time.Second
	defaultSweepInterval = 60 * time.Second
)

// LoadYAML reads and validates a YAML configuration document from path.
func LoadYAML(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, dberr.Configuration(fmt.Sprintf("reading %s", path), err)
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, dberr.Configuration(fmt.Sprintf("parsing yaml %s", path), err)
	}

	return build(raw)
}

// LoadTOML reads and validates a TOML configuration document from path.
func LoadTOML(path string) (Document, error) {
	var raw rawDocument
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Document{}, dberr.Configuration(fmt.Sprintf("parsing toml %s", path), err)
	}

	return build(raw)
}

// build validates a rawDocument and produces the frozen Document, per
// spec §4.2's failure list: missing connections, missing type, unsupported
// type, Mongo config with neither uri nor database.
func build(raw rawDocument) (Document, error) {
	if len(raw.Connections) == 0 {
		return Document{}, dberr.Configuration("configuration document has no connections", nil)
	}

	out := make(map[string]ConnectionConfig, len(raw.Connections))

	for name, rc := range raw.Connections {
		cc, err := buildOne(name, rc)
		if err != nil {
			return Document{}, err
		}

		out[name] = cc
	}

	return Document{Connections: out}, nil
}

func buildOne(name string, rc rawConnection) (ConnectionConfig, error) {
	if rc.Type == "" {
		return ConnectionConfig{}, dberr.Configuration(fmt.Sprintf("connection %q: missing type", name), nil)
	}

	backend := BackendKind(rc.Type)
	if !backend.valid() {
		return ConnectionConfig{}, dberr.Configuration(fmt.Sprintf("connection %q: unsupported type %q", name, rc.Type), nil)
	}

	if backend == BackendMongoDB && rc.URI == "" && rc.Database == "" {
		return ConnectionConfig{}, dberr.Configuration(fmt.Sprintf("connection %q: mongodb requires uri or database", name), nil)
	}

	cc := ConnectionConfig{
		Name:          name,
		Backend:       backend,
		Host:          rc.Host,
		Port:          rc.Port,
		Database:      rc.Database,
		Path:          rc.Path,
		URI:           rc.URI,
		Username:      rc.Username,
		Password:      rc.Password,
		Writable:      rc.Writable,
		Timeout:       durationOrZero(rc.TimeoutSeconds),
		MaxIdle:       durationOrDefault(rc.MaxIdleSeconds, defaultMaxIdle),
		SweepInterval: durationOrDefault(rc.SweepIntervalSeconds, defaultSweepInterval),
	}

	if rc.WritePermissions != nil {
		wp, err := buildWritePermissions(name, rc.WritePermissions)
		if err != nil {
			return ConnectionConfig{}, err
		}

		cc.WritePermissions = wp
	}

	if cc.Port == 0 {
		if envPort := os.Getenv(envPortVar(name)); envPort != "" {
			port, err := ParsePort(envPort)
			if err != nil {
				return ConnectionConfig{}, err
			}

			cc.Port = port
		}
	}

	return cc, nil
}

// envPortVar names the per-connection environment variable ParsePort's
// caller falls back to when a config file omits a discrete port (e.g.
// connection "primary" checks PRIMARY_PORT).
func envPortVar(connName string) string {
	return strings.ToUpper(connName) + "_PORT"
}

func buildWritePermissions(connName string, raw *rawWritePermissions) (*WritePermissions, error) {
	policy := DefaultPolicy(raw.DefaultPolicy)
	if policy == "" {
		policy = PolicyReadOnly
	}

	if policy != PolicyReadOnly && policy != PolicyAllowAll {
		return nil, dberr.Configuration(fmt.Sprintf("connection %q: unsupported default_policy %q", connName, raw.DefaultPolicy), nil)
	}

	wp := &WritePermissions{
		DefaultPolicy: policy,
		Rules:         make(map[string]map[string]ResourcePermission, len(raw.Resources)),
	}

	for class, byName := range raw.Resources {
		rules := make(map[string]ResourcePermission, len(byName))

		for pattern, perm := range byName {
			ops := make(map[string]bool, len(perm.AllowedOps))
			for _, op := range perm.AllowedOps {
				ops[op] = true
			}

			rules[pattern] = ResourcePermission{AllowedOps: ops}
		}

		wp.Rules[class] = rules
	}

	return wp, nil
}

func durationOrZero(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

func durationOrDefault(seconds float64, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}

	return time.Duration(seconds * float64(time.Second))
}

// ParsePort converts the string form of a port found in an environment
// variable (e.g. a "<NAME>_PORT" override, see envPortVar/buildOne) into
// the int ConnectionConfig.Port expects.
func ParsePort(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, dberr.Configuration(fmt.Sprintf("invalid port %q", s), err)
	}

	return p, nil
}
