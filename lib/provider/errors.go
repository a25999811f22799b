package provider

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Identifiers
// --------------------------------------------------------------------------

// Shared identifiers, reported inside Payload.Errors.
const (
	IdentifierMissingData      = "MissingData"
	IdentifierInvalidDataType  = "InvalidDataType"
	IdentifierInvalidValueType = "InvalidValueType"
	IdentifierInvalidCount     = "InvalidCount"
	IdentifierMissingValue     = "MissingValue"
)

// Component identifiers, returned from Init.
const (
	IdentifierNeedsMigration    = "NeedsMigration"
	IdentifierMigrationNotFound = "MigrationNotFound"
	IdentifierNameNotFound      = "NameNotFound"  // middlewares only
	IdentifierStoreNotFound     = "StoreNotFound" // middlewares only
)

// Sentinels for errors.Is. An *Error matches a sentinel with the same identifier.
var (
	ErrMissingData       = &Error{Identifier: IdentifierMissingData}
	ErrInvalidDataType   = &Error{Identifier: IdentifierInvalidDataType}
	ErrInvalidValueType  = &Error{Identifier: IdentifierInvalidValueType}
	ErrInvalidCount      = &Error{Identifier: IdentifierInvalidCount}
	ErrMissingValue      = &Error{Identifier: IdentifierMissingValue}
	ErrNeedsMigration    = &Error{Identifier: IdentifierNeedsMigration}
	ErrMigrationNotFound = &Error{Identifier: IdentifierMigrationNotFound}
	ErrNameNotFound      = &Error{Identifier: IdentifierNameNotFound}
	ErrStoreNotFound     = &Error{Identifier: IdentifierStoreNotFound}
)

// --------------------------------------------------------------------------
// Component kind
// --------------------------------------------------------------------------

// Kind is the kind of component an error originates from.
type Kind uint8

const (
	KindProvider Kind = iota + 1
	KindMiddleware
)

func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "Provider"
	case KindMiddleware:
		return "Middleware"
	default:
		return "Unknown"
	}
}

// ShortName strips the literal "Provider" or "Middleware" suffix from an implementation name.
func ShortName(kind Kind, implName string) string {
	if short := strings.TrimSuffix(implName, kind.String()); short != "" {
		return short
	}
	return implName
}

// --------------------------------------------------------------------------
// Error type
// --------------------------------------------------------------------------

// Error is the typed error of providers and middlewares.
type Error struct {
	Identifier string         // stable identifier, e.g. IdentifierMissingData
	Kind       Kind           // component kind the error originates from
	Name       string         // implementation name without the kind suffix
	Method     Method         // originating operation (MethodNone for init errors)
	Message    string         // human-readable message resolved from the identifier
	Metadata   map[string]any // identifier specific metadata
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Name != "" {
		sb.WriteString("(" + e.Name + ")")
	}
	if e.Method != MethodNone {
		sb.WriteString(" " + e.Method.String())
	}
	sb.WriteString(" [" + e.Identifier + "]: ")
	sb.WriteString(e.Message)
	return sb.String()
}

// Is reports whether target is an *Error with the same identifier.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Identifier == e.Identifier
}

// ErrorOptions is the pre-built form of an error. A non-empty Message skips identifier resolution.
type ErrorOptions struct {
	Identifier string
	Method     Method
	Message    string
	Metadata   map[string]any
}

// NewError builds an error for the component implName of the given kind.
// The message is resolved with ResolveIdentifier, then ResolveComponentIdentifier, then the
// extra resolvers in order. An identifier nobody resolves panics: it is a programming error.
func NewError(kind Kind, implName string, opts ErrorOptions, resolvers ...Resolver) *Error {
	msg := opts.Message
	if msg == "" {
		msg = resolveMessage(kind, opts.Identifier, opts.Metadata, resolvers)
	}
	return &Error{
		Identifier: opts.Identifier,
		Kind:       kind,
		Name:       ShortName(kind, implName),
		Method:     opts.Method,
		Message:    msg,
		Metadata:   opts.Metadata,
	}
}

func resolveMessage(kind Kind, identifier string, metadata map[string]any, resolvers []Resolver) string {
	if msg, ok := ResolveIdentifier(identifier, metadata); ok {
		return msg
	}
	if msg, ok := ResolveComponentIdentifier(kind, identifier, metadata); ok {
		return msg
	}
	for _, r := range resolvers {
		if r == nil {
			continue
		}
		if msg, ok := r(identifier, metadata); ok {
			return msg
		}
	}
	panic(fmt.Sprintf("provider: unresolved %s error identifier %q (metadata %v)", kind, identifier, metadata))
}
