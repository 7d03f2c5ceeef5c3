// Package creds loads and refreshes the session credentials the fetcher
// presents to the remote. Cookies come from an inline string, a cookie
// file, or a saved browser storage state; when the server starts serving
// interstitials instead of documents, a real browser session can mint a
// new set.
package creds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// storageState mirrors the JSON a browser session export produces.
type storageState struct {
	Cookies []storedCookie `json:"cookies"`
}

type storedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// ParseCookieString parses an inline "name=value; name2=value2" header
// fragment into a cookie map.
func ParseCookieString(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// LoadCookieFile reads cookies from a file holding either name=value
// lines or Netscape-format tab-separated entries. Comment and blank
// lines are skipped.
func LoadCookieFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if fields := strings.Split(line, "\t"); len(fields) == 7 {
			// Netscape format: domain flag path secure expiry name value.
			out[fields[5]] = fields[6]
			continue
		}
		if name, value, ok := strings.Cut(trimmed, "="); ok && strings.TrimSpace(name) != "" {
			out[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return out, nil
}

// LoadStorageState reads cookies from a saved browser storage-state JSON
// file.
func LoadStorageState(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read storage state: %w", err)
	}
	var state storageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse storage state: %w", err)
	}
	out := make(map[string]string, len(state.Cookies))
	for _, c := range state.Cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}

// SaveStorageState writes cookies back out in storage-state form so the
// next run can start from them.
func SaveStorageState(path string, cookies map[string]storedCookie) error {
	state := storageState{Cookies: make([]storedCookie, 0, len(cookies))}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, c)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write storage state: %w", err)
	}
	return nil
}

// Merge overlays b onto a without mutating either.
func Merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
