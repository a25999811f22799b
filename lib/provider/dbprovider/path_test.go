package dbprovider

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetPath(t *testing.T) {
	v := map[string]any{
		"a":    map[string]any{"b": "c"},
		"list": []any{"x", map[string]any{"y": float64(1)}},
		"nil":  nil,
	}
	cases := []struct {
		path  []string
		want  any
		found bool
	}{
		{nil, v, true},
		{[]string{"a", "b"}, "c", true},
		{[]string{"list", "1", "y"}, float64(1), true},
		{[]string{"list", "2"}, nil, false},
		{[]string{"list", "-1"}, nil, false},
		{[]string{"list", "x"}, nil, false},
		{[]string{"a", "b", "c"}, nil, false},
		{[]string{"nil"}, nil, true},
	}
	for _, c := range cases {
		got, found := getPath(v, c.path)
		if found != c.found {
			t.Errorf("getPath(%v) found = %v", c.path, found)
			continue
		}
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("getPath(%v) mismatch (-want +got):\n%s", c.path, d)
		}
	}
}

func TestSetPath(t *testing.T) {
	root, ok := setPath(nil, []string{"a", "b"}, 1)
	if !ok {
		t.Fatal("setPath on nil failed")
	}
	if d := cmp.Diff(map[string]any{"a": map[string]any{"b": 1}}, root); d != "" {
		t.Errorf("created root mismatch (-want +got):\n%s", d)
	}

	root, ok = setPath([]any{"x"}, []string{"1"}, "z")
	if !ok {
		t.Fatal("setPath appending to a slice failed")
	}
	if d := cmp.Diff([]any{"x", "z"}, root); d != "" {
		t.Errorf("appended slice mismatch (-want +got):\n%s", d)
	}

	for _, seg := range []string{"3", "5000000", "9223372036854775807"} {
		if _, ok := setPath([]any{"x"}, []string{seg}, "z"); ok {
			t.Errorf("setPath at index %s beyond the end of a slice must fail", seg)
		}
	}

	if _, ok := setPath("primitive", []string{"a"}, 1); ok {
		t.Error("setPath below a primitive must fail")
	}
	if _, ok := setPath([]any{}, []string{"name"}, 1); ok {
		t.Error("setPath with a non index segment on a slice must fail")
	}
}

func TestDeletePath(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "list": []any{1, 2, 3}}

	next, found := deletePath(root, []string{"a", "b"})
	if !found {
		t.Fatal("deletePath did not find a.b")
	}
	next, found = deletePath(next, []string{"list", "0"})
	if !found {
		t.Fatal("deletePath did not find list.0")
	}
	want := map[string]any{"a": map[string]any{"c": 2}, "list": []any{2, 3}}
	if d := cmp.Diff(want, next); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}

	if _, found := deletePath(next, []string{"missing", "x"}); found {
		t.Error("deletePath reported an absent path as found")
	}
}
