package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/obras/internal/models"
)

// truncate shortens s to at most n runes, adding "..." if truncated.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// dash returns "-" for an empty string.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatValue renders a stored field value for terminal output.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return dash(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// parseAssignment splits a field=value argument. An empty value clears the
// field; integer fields are stored as numbers.
func parseAssignment(arg string) (string, any, error) {
	k, v, ok := strings.Cut(arg, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", nil, fmt.Errorf("expected field=value, got %q", arg)
	}
	if v == "" {
		return k, nil, nil
	}
	if spec, ok := models.LookupField(k); ok && spec.Kind == models.KindInteger {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return "", nil, fmt.Errorf("%s must be a whole number, got %q", k, v)
		}
		return k, float64(n), nil
	}
	return k, v, nil
}

// parseAssignments parses every field=value argument into one patch.
func parseAssignments(args []string) (models.Patch, error) {
	p := make(models.Patch, len(args))
	for _, a := range args {
		k, v, err := parseAssignment(a)
		if err != nil {
			return nil, err
		}
		p[k] = v
	}
	return p, nil
}
