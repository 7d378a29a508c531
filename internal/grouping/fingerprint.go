// Package grouping maps incoming error events onto cumulative issues via
// stable fingerprints.
package grouping

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/faultline-systems/faultline/internal/jsonmap"
)

const unknownError = "Unknown Error"

// Fingerprint computes the stable grouping key for an error event payload.
// First applicable rule wins: explicit fingerprint list, then exception
// type + innermost frame location, then a digest of the message.
func Fingerprint(payload map[string]any) string {
	if parts := jsonmap.Strings(payload, "fingerprint"); len(parts) > 0 {
		return strings.Join(parts, "::")
	}

	if exc := primaryException(payload); exc != nil {
		filename, lineno := lastFrame(exc)
		return fmt.Sprintf("%s::%s::%s", jsonmap.String(exc, "type"), filename, lineno)
	}

	msg := message(payload)
	if msg == "" {
		msg = unknownError
	}
	sum := blake2b.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// Title derives the issue title: exception message, then free-text message,
// then exception type, then "Unknown Error".
func Title(payload map[string]any) string {
	exc := primaryException(payload)
	if exc != nil {
		if v := jsonmap.String(exc, "value"); v != "" {
			return v
		}
	}
	if msg := message(payload); msg != "" {
		return msg
	}
	if exc != nil {
		if t := jsonmap.String(exc, "type"); t != "" {
			return t
		}
	}
	return unknownError
}

// ErrorType returns the classified exception type, empty when the event
// carries no exception.
func ErrorType(payload map[string]any) string {
	if exc := primaryException(payload); exc != nil {
		return jsonmap.String(exc, "type")
	}
	return ""
}

// EventTimestamp parses the payload timestamp, accepting RFC3339 strings or
// epoch seconds. Returns the zero time when absent or unparseable.
func EventTimestamp(payload map[string]any) time.Time {
	switch v := payload["timestamp"].(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts
		}
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	return time.Time{}
}

// primaryException digs out the first exception value. SDKs send either
// {"exception":{"values":[...]}} or a bare list.
func primaryException(payload map[string]any) map[string]any {
	if exc := jsonmap.Map(payload, "exception"); exc != nil {
		if values := jsonmap.Objects(exc, "values"); len(values) > 0 {
			return values[0]
		}
		return nil
	}
	if values := jsonmap.Objects(payload, "exception"); len(values) > 0 {
		return values[0]
	}
	return nil
}

// lastFrame returns the innermost stack frame's filename and line number as
// strings, empty when the exception has no usable stacktrace.
func lastFrame(exc map[string]any) (filename, lineno string) {
	trace := jsonmap.Map(exc, "stacktrace")
	frames := jsonmap.Objects(trace, "frames")
	if len(frames) == 0 {
		return "", ""
	}

	frame := frames[len(frames)-1]
	filename = jsonmap.String(frame, "filename")
	if n, ok := jsonmap.Float(frame, "lineno"); ok {
		lineno = fmt.Sprintf("%d", int64(n))
	}
	return filename, lineno
}

// message returns the free-text message, accepting both the plain string
// form and the {"message":{"formatted": ...}} interface form.
func message(payload map[string]any) string {
	if s, ok := payload["message"].(string); ok {
		return s
	}
	if m := jsonmap.Map(payload, "message"); m != nil {
		return jsonmap.String(m, "formatted")
	}
	return ""
}
