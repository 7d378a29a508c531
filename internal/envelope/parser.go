package envelope

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Parse materializes an Envelope from its wire form.
//
// The wire format is a state machine over newline-delimited lines: line 0 is
// the envelope header (a JSON object, {} is legal), then alternating
// item-header / item-payload records. An item header may declare an explicit
// payload byte length; otherwise the payload ends at end-of-input or at the
// next line that looks like an item header. Explicit lengths allow payloads
// with embedded newlines.
func Parse(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrParse)
	}

	lines := strings.Split(string(data), "\n")

	headers, err := parseJSONObject(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid envelope header: %v", ErrParse, err)
	}

	env := &Envelope{Headers: headers}

	var (
		open      bool
		itemHdrs  map[string]any
		declared  int  // declared payload length, -1 when implicit
		havePiece bool // at least one payload line accumulated
		payload   strings.Builder
	)

	closeItem := func() {
		env.Items = append(env.Items, Item{
			Headers: itemHdrs,
			Payload: decodePayload(payload.String()),
		})
		open = false
		havePiece = false
		payload.Reset()
	}

	openItem := func(line string) error {
		hdrs, err := parseJSONObject(line)
		if err != nil {
			return fmt.Errorf("%w: invalid item header: %v", ErrParse, err)
		}
		if v, ok := hdrs["length"]; ok {
			n, err := intFromJSON(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: item length must be a positive integer", ErrParse)
			}
			declared = n
		} else {
			declared = -1
		}
		itemHdrs = hdrs
		open = true
		return nil
	}

	for i := 1; i < len(lines); i++ {
		line := lines[i]

		if !open {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := openItem(line); err != nil {
				return nil, err
			}
			continue
		}

		if declared > 0 {
			if havePiece {
				payload.WriteByte('\n')
			}
			payload.WriteString(line)
			havePiece = true
			if payload.Len() >= declared {
				closeItem()
			}
			continue
		}

		// Implicit termination: a header-looking line after at least one
		// payload line closes the item and starts the next one. The first
		// payload line is always payload, even when it looks like a header.
		if havePiece && looksLikeItemHeader(line) {
			closeItem()
			if err := openItem(line); err != nil {
				return nil, err
			}
			continue
		}

		if havePiece {
			payload.WriteByte('\n')
		}
		payload.WriteString(line)
		havePiece = true
	}

	// No trailing newline, or a declared length the input never reached:
	// close whatever is still open. A header with no payload at all closes
	// empty and is rejected by Validate.
	if open {
		closeItem()
	}

	return env, nil
}

func looksLikeItemHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

func decodePayload(text string) Payload {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return JSONPayload(obj)
	}
	return RawPayload(text)
}

func parseJSONObject(line string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// intFromJSON converts a decoded JSON value to an int, rejecting strings,
// fractional numbers, and anything else that is not an integral number.
func intFromJSON(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
