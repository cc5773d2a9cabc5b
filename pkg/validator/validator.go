package validator

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
)

// All returns the first non-nil error.
func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

// MapDict validates every entry of items in key order, so the reported
// error is stable.
func MapDict[T any](items map[string]T, f func(string, T) error, description string) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := f(key, items[key]); err != nil {
			return fmt.Errorf("%s[%q]: %w", description, key, err)
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func NonNegative[T number](n T, description string) error {
	if n < 0 {
		return fmt.Errorf("%s must not be negative, got %v", description, n)
	}
	return nil
}

// FileExists checks that path names a regular file. An empty path is
// accepted; combine with NotEmpty to require one.
func FileExists(path, description string) error {
	if path == "" {
		return nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%s: %s is a directory", description, path)
	}
	return nil
}

// DirExists checks that path names a directory. An empty path is accepted.
func DirExists(path, description string) error {
	if path == "" {
		return nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s: %s is not a directory", description, path)
	}
	return nil
}

// HasNoDirectives rejects values that contain template directives, for
// fields that are used verbatim.
func HasNoDirectives(field string, description string) error {
	if strings.Contains(field, "{{") {
		return fmt.Errorf("%s must not contain template directives", description)
	}
	return nil
}
