// Package dberr implements the broker's closed error taxonomy: every public
// operation in pkg/dbutils returns either a value or one of the variants
// declared here. No other error type should cross a pkg/dbutils package
// boundary.
package dberr

import (
	"errors"
	"fmt"
)

// Kind names the closed set of error variants. Database is the root kind;
// the others are leaves of the same sum type.
type Kind string

// The ten variants of the taxonomy.
const (
	KindDatabase         Kind = "Database"
	KindConnection       Kind = "Connection"
	KindAuthentication   Kind = "Authentication"
	KindConfiguration    Kind = "Configuration"
	KindResourceNotFound Kind = "ResourceNotFound"
	KindDuplicateKey     Kind = "DuplicateKey"
	KindPermission       Kind = "Permission"
	KindQuery            Kind = "Query"
	KindTransaction      Kind = "Transaction"
	KindNotImplemented   Kind = "NotImplemented"
)

// Error is the concrete type behind every dberr variant. Connection is the
// only kind retryable by default (§4.1); callers needing a different
// retryable set do so at the retry-handler layer, not here.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Connection metadata.
	Connection string

	// Query metadata: the offending query text.
	Query string

	// Permission metadata.
	Resource  string
	Operation string

	// ResourceNotFound metadata.
	ResourceName string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause.Error())
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/As keep working across the
// taxonomy boundary.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether this error's kind is retryable by default.
func (e *Error) Retryable() bool {
	return e.Kind == KindConnection
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Database builds a root Database error — used when no more specific
// variant applies.
func Database(msg string, cause error) *Error {
	return newErr(KindDatabase, msg, cause)
}

// Connection builds a retryable Connection error, naming the connection
// that failed.
func Connection(connName, msg string, cause error) *Error {
	e := newErr(KindConnection, msg, cause)
	e.Connection = connName

	return e
}

// Authentication builds an Authentication error.
func Authentication(msg string, cause error) *Error {
	return newErr(KindAuthentication, msg, cause)
}

// Configuration builds a Configuration error.
func Configuration(msg string, cause error) *Error {
	return newErr(KindConfiguration, msg, cause)
}

// ResourceNotFound builds a ResourceNotFound error naming the missing
// resource.
func ResourceNotFound(resourceName, msg string) *Error {
	e := newErr(KindResourceNotFound, msg, nil)
	e.ResourceName = resourceName

	return e
}

// DuplicateKey builds a DuplicateKey error.
func DuplicateKey(msg string, cause error) *Error {
	return newErr(KindDuplicateKey, msg, cause)
}

// Permission builds a Permission error carrying (connection, resource, op).
func Permission(connName, resource, op, msg string) *Error {
	e := newErr(KindPermission, msg, nil)
	e.Connection = connName
	e.Resource = resource
	e.Operation = op

	return e
}

// Query builds a Query error carrying the offending query text.
func Query(queryText, msg string, cause error) *Error {
	e := newErr(KindQuery, msg, cause)
	e.Query = queryText

	return e
}

// Transaction builds a Transaction error.
func Transaction(msg string, cause error) *Error {
	return newErr(KindTransaction, msg, cause)
}

// NotImplemented builds a NotImplemented error.
func NotImplemented(msg string) *Error {
	return newErr(KindNotImplemented, msg, nil)
}

// Is compares kinds instead of pointer identity: any target *Error of the
// same Kind matches, so `errors.Is(err, &dberr.Error{Kind:
// dberr.KindPermission})` holds for every Permission error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}

	return false
}

// As reports whether err (or a wrapped cause) is a *Error, and if so
// returns its Kind. Convenience for call sites that only care about the
// kind, not the full struct.
func As(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

// IsKind reports whether err unwraps to a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := As(err)
	return ok && k == kind
}
