package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAll(t *testing.T) {
	first := errors.New("first")
	if err := All(nil, first, errors.New("second")); err != first {
		t.Fatalf("got %v", err)
	}
	if err := All(nil, nil); err != nil {
		t.Fatalf("got %v", err)
	}
}

func TestMapDictIsOrdered(t *testing.T) {
	items := map[string]int{"b": -1, "a": -2, "c": 3}
	err := MapDict(items, func(k string, v int) error {
		return NonNegative(v, "value")
	}, "templates")
	if err == nil || !strings.HasPrefix(err.Error(), `templates["a"]: value must not be negative`) {
		t.Fatalf("got %v", err)
	}
}

func TestNonNegative(t *testing.T) {
	if err := NonNegative(0, "n"); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := NonNegative(-time.Second, "ttl"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestNoDuplicates(t *testing.T) {
	if err := NoDuplicates([]string{"a", "b"}, "scripts"); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := NoDuplicates([]string{"a", "b", "a"}, "scripts"); err == nil || !strings.Contains(err.Error(), "duplicate value: a") {
		t.Fatalf("got %v", err)
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.star")
	if err := os.WriteFile(file, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		err  error
		ok   bool
	}{
		{"file exists", FileExists(file, "script"), true},
		{"empty file path", FileExists("", "script"), true},
		{"missing file", FileExists(filepath.Join(dir, "nope"), "script"), false},
		{"dir is not a file", FileExists(dir, "script"), false},
		{"dir exists", DirExists(dir, "template_dir"), true},
		{"file is not a dir", DirExists(file, "template_dir"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if (tc.err == nil) != tc.ok {
				t.Fatalf("got %v", tc.err)
			}
		})
	}
}

func TestHasNoDirectives(t *testing.T) {
	if err := HasNoDirectives("plain", "name"); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := HasNoDirectives("{{ x }}", "name"); err == nil {
		t.Fatal("expected error")
	}
	if err := NotEmpty("", "name"); err == nil {
		t.Fatal("expected error")
	}
	if err := MatchesAllowed("xml", []string{"html", "none"}, "escape"); err == nil {
		t.Fatal("expected error")
	}
}
