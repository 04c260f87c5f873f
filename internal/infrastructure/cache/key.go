// Package cache holds guarded query results keyed by tenant-suffixed keys and
// propagates invalidations between service instances.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key is an ordered list of primitive parts identifying a cached query.
// Keys produced by the access layer always end with the tenant id.
type Key []any

// WithTenant returns a copy of the key with the tenant id appended
func (k Key) WithTenant(tenantID string) Key {
	out := make(Key, len(k), len(k)+1)
	copy(out, k)
	return append(out, tenantID)
}

// Last returns the final part of the key, or nil for an empty key
func (k Key) Last() any {
	if len(k) == 0 {
		return nil
	}
	return k[len(k)-1]
}

// String renders the key as a JSON array
func (k Key) String() string {
	parts := k.encodedParts()
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether every part of prefix equals the matching part of k.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if encodePart(k[i]) != encodePart(prefix[i]) {
			return false
		}
	}
	return true
}

func (k Key) encodedParts() []string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = encodePart(p)
	}
	return parts
}

// encodePart gives numerically equal values the same encoding regardless of
// their Go type, so keys survive a JSON round trip through the bus.
func encodePart(p any) string {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(p))
	}
	return string(b)
}
