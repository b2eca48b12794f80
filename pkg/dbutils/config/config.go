// Package config implements the broker's configuration model (spec §4.2):
// a typed, frozen view of connection definitions and write-permission
// rules, produced once at load time.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// BackendKind enumerates the supported backend kinds.
type BackendKind string

// Supported backend kinds.
const (
	BackendSQLite   BackendKind = "sqlite"
	BackendPostgres BackendKind = "postgres"
	BackendMySQL    BackendKind = "mysql"
	BackendMongoDB  BackendKind = "mongodb"
	BackendRedis    BackendKind = "redis"
)

func (k BackendKind) valid() bool {
	switch k {
	case BackendSQLite, BackendPostgres, BackendMySQL, BackendMongoDB, BackendRedis:
		return true
	default:
		return false
	}
}

// ResourceClass returns the backend-appropriate name for an addressable
// resource: "tables" for SQL backends, "collections" for mongo, "keys"
// for redis.
func (k BackendKind) ResourceClass() string {
	switch k {
	case BackendMongoDB:
		return "collections"
	case BackendRedis:
		return "keys"
	default:
		return "tables"
	}
}

// DefaultPolicy is the default write-permission policy for a connection
// that defines no explicit rule for a resource.
type DefaultPolicy string

// Supported default policies.
const (
	PolicyReadOnly DefaultPolicy = "read_only"
	PolicyAllowAll DefaultPolicy = "allow_all"
)

// ResourcePermission names the operations allowed on one resource
// name-or-glob.
type ResourcePermission struct {
	AllowedOps map[string]bool
}

// Allows reports whether op (or ALL) is permitted.
func (p ResourcePermission) Allows(op string) bool {
	return p.AllowedOps["ALL"] || p.AllowedOps[op]
}

// WritePermissions is the per-connection write policy (spec §3).
type WritePermissions struct {
	DefaultPolicy DefaultPolicy
	// Rules maps resource_class -> resource_name_or_glob -> permission.
	Rules map[string]map[string]ResourcePermission
}

// ConnectionConfig is an immutable-after-load view of one named
// connection definition (spec §3).
type ConnectionConfig struct {
	Name    string
	Backend BackendKind

	Host     string
	Port     int
	Database string
	Path     string // sqlite file path
	URI      string // mongo/redis URI, when given instead of discrete fields
	Username string
	Password string

	Writable         bool
	WritePermissions *WritePermissions

	Timeout       time.Duration
	MaxIdle       time.Duration
	SweepInterval time.Duration
}

// maskedToken replaces a credential value in logs.
const maskedToken = "***"

// MaskedView returns a copy of cc safe to log: Password replaced by a
// fixed token, URI credentials stripped if embedded.
func (cc ConnectionConfig) MaskedView() ConnectionConfig {
	masked := cc
	if masked.Password != "" {
		masked.Password = maskedToken
	}

	if idx := strings.Index(masked.URI, "@"); idx >= 0 {
		if schemeIdx := strings.Index(masked.URI, "://"); schemeIdx >= 0 && schemeIdx < idx {
			masked.URI = masked.URI[:schemeIdx+3] + maskedToken + masked.URI[idx:]
		}
	}

	return masked
}

// ResourceClass is a convenience forwarding to Backend.ResourceClass().
func (cc ConnectionConfig) ResourceClass() string {
	return cc.Backend.ResourceClass()
}

// Document is the frozen, validated view of a configuration file: a map of
// connection name to its typed config. It is the ConfigDocument type named
// as an external collaborator's output in spec §1/§4.2.
type Document struct {
	Connections map[string]ConnectionConfig
}

// Get returns the named connection's config, or a Configuration error if
// the name is unknown or the map is empty (spec §8 boundary behaviour:
// "Empty config connection map: get_connection(any) fails with
// Configuration").
func (d Document) Get(name string) (ConnectionConfig, error) {
	if len(d.Connections) == 0 {
		return ConnectionConfig{}, dberr.Configuration("no connections configured", nil)
	}

	cc, ok := d.Connections[name]
	if !ok {
		return ConnectionConfig{}, dberr.Configuration(fmt.Sprintf("unknown connection %q", name), nil)
	}

	return cc, nil
}
