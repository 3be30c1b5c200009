// Package mapping holds the static recipient-to-destination forwarding table.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned when a mapping has no entries.
var ErrEmpty = errors.New("forward mapping is empty")

// Mapping translates a received address, a local-part, or a local-part
// without its "+tag" suffix into a single destination address. Keys are
// lower-case. A Mapping must not be modified after construction.
type Mapping map[string]string

// New builds a Mapping from raw entries, lower-casing keys and trimming
// whitespace. Entries with an empty key or destination are rejected.
func New(entries map[string]string) (Mapping, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	m := make(Mapping, len(entries))
	for k, v := range entries {
		key := strings.ToLower(strings.TrimSpace(k))
		dest := strings.TrimSpace(v)
		if key == "" {
			return nil, fmt.Errorf("forward mapping has an empty key")
		}
		if dest == "" {
			return nil, fmt.Errorf("forward mapping entry %q has an empty destination", k)
		}
		if prev, ok := m[key]; ok && prev != dest {
			return nil, fmt.Errorf("forward mapping key %q is defined more than once", key)
		}
		m[key] = dest
	}
	return m, nil
}

// Parse decodes a JSON object of string keys to string destinations.
func Parse(data []byte) (Mapping, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse forward mapping: %w", err)
	}
	return New(entries)
}

// Resolve returns the destination for a lower-cased recipient address.
// Lookup order, first match wins:
//
//  1. the full address
//  2. the local-part, including any "+tag"
//  3. the local-part with the "+tag" removed
func (m Mapping) Resolve(recipient string) (string, bool) {
	if dest, ok := m[recipient]; ok {
		return dest, true
	}

	local := recipient
	if i := strings.Index(recipient, "@"); i >= 0 {
		local = recipient[:i]
	}
	if dest, ok := m[local]; ok {
		return dest, true
	}

	if i := strings.Index(local, "+"); i >= 0 {
		if dest, ok := m[local[:i]]; ok {
			return dest, true
		}
	}

	return "", false
}
