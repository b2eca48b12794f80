// Package permission implements the write-permission checker (spec
// §4.7): decides whether a (connection, resource, operation) triple is
// allowed, given a connection's WritePermissions.
package permission

import (
	"path/filepath"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Check decides whether op is allowed against resource on cc, per the
// six-step algorithm of spec §4.7. connName is the connection identifier
// used for Permission error metadata. cc is nil when the connection is
// not configured (step 1).
func Check(connName string, cc *config.ConnectionConfig, resource string, op connection.OpKind) error {
	if cc == nil {
		return dberr.Permission(connName, resource, string(op), "connection not configured")
	}

	if op == connection.OpRead {
		return nil
	}

	if !cc.Writable {
		return dberr.Permission(connName, resource, string(op), "connection not writable")
	}

	if cc.WritePermissions != nil {
		if perm, ok := lookupRule(cc.WritePermissions, cc.ResourceClass(), resource); ok && perm.Allows(string(op)) {
			return nil
		}

		if cc.WritePermissions.DefaultPolicy == config.PolicyAllowAll {
			return nil
		}

		return dberr.Permission(connName, resource, string(op), "no matching permission rule")
	}

	return dberr.Permission(connName, resource, string(op), "no matching permission rule")
}

// AllowedOperations returns the set of operations resource permits on cc,
// the set-valued dual of Check (spec §4.7).
func AllowedOperations(cc config.ConnectionConfig, resource string) map[connection.OpKind]bool {
	ops := map[connection.OpKind]bool{connection.OpRead: true}

	if !cc.Writable || cc.WritePermissions == nil {
		return ops
	}

	perm, ok := lookupRule(cc.WritePermissions, cc.ResourceClass(), resource)

	for _, op := range []connection.OpKind{connection.OpInsert, connection.OpUpdate, connection.OpDelete} {
		switch {
		case ok && perm.Allows(string(op)):
			ops[op] = true
		case cc.WritePermissions.DefaultPolicy == config.PolicyAllowAll:
			ops[op] = true
		}
	}

	return ops
}

// lookupRule finds resource's permission within resourceClass: an exact
// match first, then a glob match (spec §4.7 step 4).
func lookupRule(wp *config.WritePermissions, resourceClass, resource string) (config.ResourcePermission, bool) {
	rules, ok := wp.Rules[resourceClass]
	if !ok {
		return config.ResourcePermission{}, false
	}

	if perm, ok := rules[resource]; ok {
		return perm, true
	}

	for pattern, perm := range rules {
		if matched, err := filepath.Match(pattern, resource); err == nil && matched {
			return perm, true
		}
	}

	return config.ResourcePermission{}, false
}
