package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// Semver is a (major, minor, patch) version triple.
type Semver struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
}

// Compare orders versions lexicographically by major, minor, patch.
// It returns -1 if v < o, 0 if equal and 1 if v > o.
func (v Semver) Compare(o Semver) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

// Less reports whether v < o.
func (v Semver) Less(o Semver) bool { return v.Compare(o) < 0 }

func (v Semver) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSemver parses "major.minor.patch" (a leading "v" is accepted).
func ParseSemver(s string) (Semver, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return Semver{}, fmt.Errorf("invalid version %q (expected major.minor.patch)", s)
	}
	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Semver{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = n
	}
	return Semver{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
