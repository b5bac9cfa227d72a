package gateway

import (
	"strings"
)

const qrDataURIPrefix = "data:image/png;base64,"

// QrExtractor tries to pull a QR payload out of a decoded gateway response.
// Gateways drift on the field name across versions, so extraction is an
// ordered list of small pure functions tried until one matches.
type QrExtractor func(body map[string]interface{}) (string, bool)

func qrFromKey(key string) QrExtractor {
	return func(body map[string]interface{}) (string, bool) {
		return qrValue(body[key])
	}
}

func qrFromNested(outer, inner string) QrExtractor {
	return func(body map[string]interface{}) (string, bool) {
		m, ok := body[outer].(map[string]interface{})
		if !ok {
			return "", false
		}
		return qrValue(m[inner])
	}
}

// qrValue accepts either a bare string or a {"base64": ...}/{"code": ...} object.
func qrValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t, true
		}
	case map[string]interface{}:
		for _, k := range []string{"base64", "code", "qr"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

var qrExtractors = []QrExtractor{
	qrFromKey("base64"),
	qrFromKey("qrcode"),
	qrFromKey("qr"),
	qrFromKey("qrCode"),
	qrFromNested("instance", "qrcode"),
	qrFromNested("qrcode", "base64"),
}

// ExtractQr runs the extractor chain over a decoded response body and returns
// a normalized QR payload, or "" when the response carries none.
func ExtractQr(body map[string]interface{}) string {
	if body == nil {
		return ""
	}
	for _, ex := range qrExtractors {
		if code, ok := ex(body); ok {
			return NormalizeQr(code)
		}
	}
	return ""
}

// NormalizeQr prefixes raw base64 payloads with the image data-URI scheme.
// Payloads that already carry a scheme are returned untouched.
func NormalizeQr(code string) string {
	if code == "" || strings.HasPrefix(code, "data:") {
		return code
	}
	return qrDataURIPrefix + code
}
