package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"s3encrypt/internal/types"
)

// ParseDocument parses a flat JSON object into a SecretMap.
//
// String values are kept as is. Numbers and booleans are kept as their JSON
// literal text, so 1.50 stays "1.50". Null, arrays, nested objects and
// invalid UTF-8 are rejected. Error messages name keys and offsets only,
// never values.
func ParseDocument(plaintext []byte) (types.SecretMap, error) {
	trimmed := bytes.TrimSpace(plaintext)
	if len(trimmed) == 0 {
		return nil, types.NewAppError(types.ErrCodeParseInvalidDocument, "secrets document is empty", nil)
	}
	if trimmed[0] != '{' {
		return nil, types.NewAppError(types.ErrCodeParseInvalidDocument,
			"secrets document is not a JSON object", nil)
	}

	// encoding/json would replace invalid bytes with U+FFFD.
	if !utf8.Valid(trimmed) {
		return nil, types.NewAppError(types.ErrCodeParseInvalidDocument, "secrets document is not valid UTF-8", nil)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, syntaxError(err)
	}

	out := make(types.SecretMap, len(raw))
	for key, value := range raw {
		if len(value) == 0 {
			return nil, unsupported(key, "empty")
		}
		switch value[0] {
		case '"':
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, syntaxError(err)
			}
			out[key] = s
		case 't', 'f':
			out[key] = string(value)
		case 'n':
			return nil, unsupported(key, "null")
		case '[':
			return nil, unsupported(key, "array")
		case '{':
			return nil, unsupported(key, "object")
		default:
			// Remaining valid JSON values are numbers.
			out[key] = string(value)
		}
	}
	return out, nil
}

func unsupported(key, kind string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeParseUnsupportedType,
		fmt.Sprintf("value of %q is %s, only strings, numbers and booleans are supported", key, kind),
		nil, map[string]any{"key": key, "type": kind})
}

// syntaxError reports where decoding failed without echoing the document.
func syntaxError(err error) error {
	details := map[string]any{}
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		details["offset"] = synErr.Offset
	}
	return types.NewAppErrorWithDetails(types.ErrCodeParseInvalidDocument,
		"secrets document is not valid JSON", nil, details)
}
