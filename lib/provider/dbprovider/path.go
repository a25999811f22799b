package dbprovider

import "strconv"

// --------------------------------------------------------------------------
// Nested paths
// --------------------------------------------------------------------------
//
// Values are decoded by the codec into nil, bool, float64, string, []any and map[string]any.
// A path segment selects a field of a map or, if it parses as an integer, an element of a slice.

// getPath returns the value at path inside v.
func getPath(v any, path []string) (any, bool) {
	cur := v
	for _, seg := range path {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, ok := index(seg)
			if !ok || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath stores value at path inside root and returns the new root.
// Missing intermediate containers are created as maps. A slice index may address an existing
// element or the position right after the last one, which appends.
// ok is false if a primitive value is in the way or the index lies beyond the end of the slice.
func setPath(root any, path []string, value any) (newRoot any, ok bool) {
	if len(path) == 0 {
		return value, true
	}
	seg, rest := path[0], path[1:]

	switch c := root.(type) {
	case nil:
		child, ok := setPath(nil, rest, value)
		if !ok {
			return nil, false
		}
		return map[string]any{seg: child}, true
	case map[string]any:
		child, ok := setPath(c[seg], rest, value)
		if !ok {
			return nil, false
		}
		c[seg] = child
		return c, true
	case []any:
		i, valid := index(seg)
		if !valid || i > len(c) {
			return nil, false
		}
		if i == len(c) {
			c = append(c, nil)
		}
		child, ok := setPath(c[i], rest, value)
		if !ok {
			return nil, false
		}
		c[i] = child
		return c, true
	default:
		return nil, false
	}
}

// deletePath removes the value at path inside root and returns the new root.
// Slice elements are spliced out. found is false if nothing was stored at path.
func deletePath(root any, path []string) (newRoot any, found bool) {
	if len(path) == 0 {
		return nil, true
	}
	seg, rest := path[0], path[1:]

	switch c := root.(type) {
	case map[string]any:
		child, ok := c[seg]
		if !ok {
			return root, false
		}
		if len(rest) == 0 {
			delete(c, seg)
			return c, true
		}
		child, found = deletePath(child, rest)
		if found {
			c[seg] = child
		}
		return c, found
	case []any:
		i, ok := index(seg)
		if !ok || i >= len(c) {
			return root, false
		}
		if len(rest) == 0 {
			return append(c[:i], c[i+1:]...), true
		}
		child, found := deletePath(c[i], rest)
		if found {
			c[i] = child
		}
		return c, found
	default:
		return root, false
	}
}

func index(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	return i, err == nil && i >= 0
}

// isPrimitive reports whether a decoded value is nil, a bool, a number or a string.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string:
		return true
	default:
		return false
	}
}
