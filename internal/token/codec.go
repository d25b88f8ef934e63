// Package token bridges session ids and the scannable payloads shown to
// students. Encoding always produces the canonical URL shape; decoding also
// accepts a structured JSON payload, since scanner libraries differ in what
// they hand back.
package token

import (
	"encoding/json"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Payload is the scannable representation of a session. The URL is what gets
// rendered into the QR graphic; the session id rides along for clients that
// prefer the structured shape.
type Payload struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Codec encodes sessions into payloads anchored at a public base URL.
type Codec struct {
	baseURL string
}

// NewCodec creates a codec. baseURL is the externally reachable address of
// the API, e.g. https://attendance.example.edu.
func NewCodec(baseURL string) *Codec {
	return &Codec{baseURL: strings.TrimRight(baseURL, "/")}
}

// Encode produces the payload for a session.
func (c *Codec) Encode(sessionID string) Payload {
	return Payload{
		SessionID: sessionID,
		URL:       c.baseURL + "/api/attendance/mark/" + sessionID,
	}
}

// QRImage renders the canonical payload URL as a PNG of size x size pixels.
func (c *Codec) QRImage(sessionID string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(c.Encode(sessionID).URL, qrcode.Medium, size)
}

// pathPattern matches URL-shaped payloads embedding a session id as the last
// path segment after an attendance-mark prefix. Legacy codes used /attend/.
var pathPattern = regexp.MustCompile(`(?:/api)?/(?:attendance/mark|attend)/([A-Za-z0-9_-]+)/?$`)

type structuredPayload struct {
	SessionID  string `json:"session_id"`
	SessionID2 string `json:"sessionId"`
}

// Decode resolves raw scanned text into a session id. It tries the
// structured JSON shape first, then falls back to extracting the id from a
// path-shaped string. It is total: garbage input yields ("", false), never a
// panic or error.
func Decode(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.HasPrefix(raw, "{") {
		var p structuredPayload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			if p.SessionID != "" {
				return p.SessionID, true
			}
			if p.SessionID2 != "" {
				return p.SessionID2, true
			}
		}
	}

	if m := pathPattern.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}

	return "", false
}
