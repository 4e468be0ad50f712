package devicecloud

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// decodeBase64 decodes a base64 payload field from a notification envelope.
// An empty payload decodes to nil.
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return data, nil
}

// decodeValue interprets a decoded payload according to its content type:
// structured (application/json and +json suffixes) payloads unmarshal into
// Go values, text payloads become float64 when numeric and string otherwise,
// and anything else passes through as raw bytes.
func decodeValue(data []byte, ct string) (any, error) {
	if data == nil {
		return nil, nil
	}
	switch {
	case isJSONContentType(ct):
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &DecodeError{ContentType: ct, Err: err}
		}
		return v, nil
	case isTextContentType(ct):
		s := string(data)
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, nil
		}
		return s, nil
	default:
		return data, nil
	}
}

// isJSONContentType reports whether ct denotes a structured JSON payload.
func isJSONContentType(ct string) bool {
	ct = baseContentType(ct)
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

// isTextContentType reports whether ct denotes a plain-text payload.
// The default content type for device resource values is text/plain.
func isTextContentType(ct string) bool {
	ct = baseContentType(ct)
	return ct == "" || strings.HasPrefix(ct, "text/")
}

// baseContentType strips parameters like "; charset=utf-8".
func baseContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}
