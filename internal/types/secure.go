package types

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or serialization
// of sensitive values. It overrides String() and MarshalJSON() to return a redacted
// placeholder, ensuring secrets are never leaked through fmt functions or JSON output.
//
// Use Unmask() to retrieve the raw plaintext value when it is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString keeps %#v from bypassing String.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value of the secret.
// Usage of this method should be strictly audited.
func (s SecretString) Unmask() string {
	return string(s)
}

// SecretMap is a decrypted flat key/value secrets document.
//
// Like SecretString, it never renders its values: fmt, JSON and slog output
// show only the key names. Values are read with Get or Unmask.
type SecretMap map[string]string

// Get returns the value stored under key as a SecretString.
func (m SecretMap) Get(key string) (SecretString, bool) {
	v, ok := m[key]
	return SecretString(v), ok
}

// Keys returns the sorted key names.
func (m SecretMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unmask returns a plain copy of the mapping.
func (m SecretMap) Unmask() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String renders the key names with redacted values.
func (m SecretMap) String() string {
	return fmt.Sprintf("SecretMap%v", m.Keys())
}

// GoString keeps %#v from bypassing String.
func (m SecretMap) GoString() string {
	return m.String()
}

// Format implements fmt.Formatter so that no verb (including %v on the
// underlying map) prints values.
func (m SecretMap) Format(f fmt.State, _ rune) {
	_, _ = fmt.Fprint(f, m.String())
}

// MarshalJSON encodes every value as the redacted placeholder.
func (m SecretMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.Keys() {
		if i > 0 {
			buf = append(buf, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, name...)
		buf = append(buf, ':')
		buf = append(buf, redactedJSON...)
	}
	return append(buf, '}'), nil
}

// LogValue implements slog.LogValuer.
func (m SecretMap) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("count", len(m)),
		slog.Any("keys", m.Keys()),
	)
}

// Wipe zeroes a plaintext buffer in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
