package envelope

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeaderAndSingleEvent(t *testing.T) {
	body := `{"event_id":"abc","sent_at":"2025-10-18T08:00:00Z"}
{"type":"event"}
{"message":"boom"}`

	env, err := Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "abc", env.EventID())
	assert.False(t, env.SentAt().IsZero())
	require.Len(t, env.Items, 1)

	item := env.Items[0]
	assert.Equal(t, ItemTypeEvent, item.Type())

	obj, ok := item.Payload.Object()
	require.True(t, ok)
	assert.Equal(t, "boom", obj["message"])
}

func TestParse_EmptyHeaderObject(t *testing.T) {
	body := "{}\n{\"type\":\"session\"}\n{\"sid\":\"1\"}\n"

	env, err := Parse([]byte(body))
	require.NoError(t, err)

	assert.Empty(t, env.Headers)
	require.Len(t, env.Items, 1)
	assert.Equal(t, ItemTypeSession, env.Items[0].Type())
}

func TestParse_ExplicitLengthWithEmbeddedNewlines(t *testing.T) {
	payload := "line one\nline two\nline three"
	body := "{}\n{\"type\":\"attachment\",\"length\":" +
		strconv.Itoa(len(payload)) + "}\n" + payload + "\n{\"type\":\"event\"}\n{\"message\":\"after\"}\n"

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 2)

	_, isJSON := env.Items[0].Payload.Object()
	assert.False(t, isJSON, "attachment payload should stay opaque")

	raw, err := env.Items[0].Payload.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, string(raw))

	assert.Equal(t, ItemTypeEvent, env.Items[1].Type())
}

func TestParse_ExplicitLengthMismatchStillAccumulates(t *testing.T) {
	// Declared length exceeds the actual payload: the item closes at EOF.
	body := `{}
{"type":"event","length":17}
{"message":"hi"}`

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 1)

	obj, ok := env.Items[0].Payload.Object()
	require.True(t, ok)
	assert.Equal(t, "hi", obj["message"])
}

func TestParse_MultipleImplicitItems(t *testing.T) {
	body := `{"event_id":"e1"}
{"type":"event"}
{"message":"first"}
{"type":"transaction"}
{"transaction":"GET /"}
{"type":"unknown_thing"}
{"whatever":true}`

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 3)

	assert.Equal(t, ItemTypeEvent, env.Items[0].Type())
	assert.Equal(t, ItemTypeTransaction, env.Items[1].Type())
	assert.Equal(t, "unknown_thing", env.Items[2].Type())
}

func TestParse_ImplicitPayloadMultiLineText(t *testing.T) {
	body := "{}\n{\"type\":\"attachment\"}\nplain text line 1\nplain text line 2"

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 1)

	raw, err := env.Items[0].Payload.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "plain text line 1\nplain text line 2", string(raw))
}

func TestParse_NoTrailingNewline(t *testing.T) {
	body := `{"event_id":"tail"}
{"type":"event"}
{"message":"no trailing newline"}`

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 1)

	obj, ok := env.Items[0].Payload.Object()
	require.True(t, ok)
	assert.Equal(t, "no trailing newline", obj["message"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"first line not JSON", "not json\n{\"type\":\"event\"}\n{}"},
		{"first line JSON array", "[]\n{\"type\":\"event\"}\n{}"},
		{"negative length", "{}\n{\"type\":\"event\",\"length\":-1}\npayload"},
		{"zero length", "{}\n{\"type\":\"event\",\"length\":0}\npayload"},
		{"string length", "{}\n{\"type\":\"event\",\"length\":\"x\"}\npayload"},
		{"fractional length", "{}\n{\"type\":\"event\",\"length\":3.5}\npayload"},
		{"garbage item header", "{}\nnot a header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParse_NonJSONPayloadKeptOpaque(t *testing.T) {
	body := "{}\n{\"type\":\"attachment\",\"length\":11}\nhello world\n"

	env, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, env.Items, 1)

	_, isJSON := env.Items[0].Payload.Object()
	assert.False(t, isJSON)

	raw, _ := env.Items[0].Payload.Bytes()
	assert.Equal(t, "hello world", string(raw))
}
