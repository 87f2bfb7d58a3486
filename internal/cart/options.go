package cart

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Options is the set of variant selections attached to a line item, e.g.
// {"color": "red", "size": "m"}. It participates in row id derivation, so two
// items for the same product with different options occupy separate rows.
type Options map[string]string

// Get returns the option value for key, or the empty string.
func (o Options) Get(key string) string { return o[key] }

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy so mutations on an item never alias the caller's map.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Meta is a free-form attribute bag carried on a line item. It does not
// participate in row id derivation.
type Meta map[string]any

// Get returns the meta value for key, or nil.
func (m Meta) Get(key string) any { return m[key] }

// Clone returns a shallow copy of the bag.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RowID derives the deterministic identity key for a cart line from the
// product identifier and its options. Option keys are sorted before hashing,
// so insertion order never changes the result, and the function is pure:
// equal inputs hash identically across process restarts.
func RowID(productID string, options Options) string {
	var sb strings.Builder
	sb.WriteString(productID)
	for _, k := range options.Keys() {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(options[k])
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
