// Package auth checks the API keys presented to the HTTP API.
package auth

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type APIKeyAuth struct {
	headerName string
	keys       []keyEntry
}

type keyEntry struct {
	ID  string `yaml:"id"`
	Key string `yaml:"key"`
	// Description is informational only.
	Description string `yaml:"description"`
}

// NewAPIKeyAuth builds an authenticator from inline keys and, when keysFile
// is set, the entries of a YAML key file. Inline keys are named key-1, key-2
// and so on.
func NewAPIKeyAuth(inline []string, keysFile, headerName string) (*APIKeyAuth, error) {
	if strings.TrimSpace(headerName) == "" {
		headerName = "X-API-Key"
	}
	a := &APIKeyAuth{headerName: headerName}
	for i, k := range inline {
		if strings.TrimSpace(k) == "" {
			continue
		}
		a.keys = append(a.keys, keyEntry{ID: "key-" + strconv.Itoa(i+1), Key: k})
	}
	if keysFile != "" {
		entries, err := loadKeysFile(keysFile)
		if err != nil {
			return nil, err
		}
		a.keys = append(a.keys, entries...)
	}
	if len(a.keys) == 0 {
		return nil, fmt.Errorf("api key auth enabled but no keys configured")
	}
	return a, nil
}

func loadKeysFile(path string) ([]keyEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api keys file: %w", err)
	}
	var entries []keyEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse api keys file: %w", err)
	}
	out := entries[:0]
	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			continue
		}
		if e.ID == "" {
			e.ID = "file-" + strconv.Itoa(i+1)
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *APIKeyAuth) HeaderName() string { return a.headerName }

func (a *APIKeyAuth) IsAllowed(key string) bool {
	_, ok := a.Identify(key)
	return ok
}

// Identify returns the ID of the entry holding key. Every entry is compared
// so the timing does not depend on which one matches.
func (a *APIKeyAuth) Identify(key string) (string, bool) {
	if a == nil || key == "" {
		return "", false
	}
	id, found := "", false
	for _, e := range a.keys {
		if subtle.ConstantTimeCompare([]byte(e.Key), []byte(key)) == 1 && !found {
			id, found = e.ID, true
		}
	}
	return id, found
}
