package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serialize renders the envelope in its wire form. Payloads containing
// embedded newlines get an explicit length header so they survive the
// newline-delimited framing; everything else uses implicit termination.
func Serialize(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope")
	}

	var buf bytes.Buffer

	headers := env.Headers
	if headers == nil {
		headers = map[string]any{}
	}
	hdr, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope header: %w", err)
	}
	buf.Write(hdr)

	for i := range env.Items {
		item := &env.Items[i]

		body, err := item.Payload.Bytes()
		if err != nil {
			return nil, fmt.Errorf("marshal item payload: %w", err)
		}

		itemHdrs := make(map[string]any, len(item.Headers)+1)
		for k, v := range item.Headers {
			itemHdrs[k] = v
		}
		if _, declared := item.Length(); declared || bytes.ContainsRune(body, '\n') {
			itemHdrs["length"] = len(body)
		}

		hdrLine, err := json.Marshal(itemHdrs)
		if err != nil {
			return nil, fmt.Errorf("marshal item header: %w", err)
		}

		buf.WriteByte('\n')
		buf.Write(hdrLine)
		buf.WriteByte('\n')
		buf.Write(body)
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
