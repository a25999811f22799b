package provider

import "fmt"

// Resolver maps an identifier and its metadata to a message.
// It returns ok=false for identifiers it does not know or metadata it cannot use.
type Resolver func(identifier string, metadata map[string]any) (message string, ok bool)

// ResolveIdentifier resolves the shared identifiers.
//
// Required metadata:
//   - MissingData:      key string, path []string (optional)
//   - InvalidDataType:  key string, path []string (optional), type string
//   - InvalidValueType: type string, key string (optional), path []string (optional)
//   - InvalidCount:     none
//   - MissingValue:     key string, path []string (optional)
//
// Absent or mistyped metadata yields ok=false rather than an error.
func ResolveIdentifier(identifier string, metadata map[string]any) (string, bool) {
	switch identifier {
	case IdentifierMissingData:
		loc, ok := location(metadata, true)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("The data at %q does not exist.", loc), true

	case IdentifierInvalidDataType:
		loc, ok := location(metadata, true)
		if !ok {
			return "", false
		}
		typ, ok := metadata["type"].(string)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("The data at %q must be of type %q.", loc, typ), true

	case IdentifierInvalidValueType:
		typ, ok := metadata["type"].(string)
		if !ok {
			return "", false
		}
		loc, ok := location(metadata, false)
		if !ok {
			return "", false
		}
		if loc == "" {
			return fmt.Sprintf("The \"value\" must be of type %q.", typ), true
		}
		return fmt.Sprintf("The \"value\" for %q must be of type %q.", loc, typ), true

	case IdentifierInvalidCount:
		return "The \"count\" of values to select must not exceed the number of unique entries in the store.", true

	case IdentifierMissingValue:
		loc, ok := location(metadata, true)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("The \"value\" argument for %q is missing.", loc), true
	}
	return "", false
}

// ResolveComponentIdentifier resolves the identifiers raised during Init.
// NameNotFound and StoreNotFound only resolve for middlewares.
//
// Metadata:
//   - NeedsMigration:    version Semver (stored), target Semver (declared), both optional
//   - MigrationNotFound: version Semver (stored), required
func ResolveComponentIdentifier(kind Kind, identifier string, metadata map[string]any) (string, bool) {
	switch identifier {
	case IdentifierNeedsMigration:
		stored, hasStored := metadata["version"].(Semver)
		target, hasTarget := metadata["target"].(Semver)
		if !hasStored || !hasTarget {
			return fmt.Sprintf("The stored data is older than the %s requires. Enable migrations to upgrade it.",
				kindNoun(kind)), true
		}
		return fmt.Sprintf("The stored data is at version %s but the %s requires %s. Enable migrations to upgrade it.",
			stored, kindNoun(kind), target), true

	case IdentifierMigrationNotFound:
		stored, ok := metadata["version"].(Semver)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("No migration was found to upgrade the %s data from version %s.", kindNoun(kind), stored), true

	case IdentifierNameNotFound:
		if kind != KindMiddleware {
			return "", false
		}
		return "The middleware context does not contain a store name.", true

	case IdentifierStoreNotFound:
		if kind != KindMiddleware {
			return "", false
		}
		return "The middleware context does not contain a store.", true
	}
	return "", false
}

func kindNoun(kind Kind) string {
	if kind == KindMiddleware {
		return "middleware"
	}
	return "provider"
}

// location renders "key[.path]" from metadata. With requireKey unset an absent key yields "".
func location(metadata map[string]any, requireKey bool) (string, bool) {
	rawKey, present := metadata["key"]
	if !present {
		return "", !requireKey
	}
	key, ok := rawKey.(string)
	if !ok {
		return "", false
	}
	var path []string
	if raw, present := metadata["path"]; present && raw != nil {
		if path, ok = raw.([]string); !ok {
			return "", false
		}
	}
	return JoinLocation(key, path), true
}
