package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(op string, start, end float64) map[string]any {
	return map[string]any{
		"op":              op,
		"start_timestamp": start,
		"timestamp":       end,
	}
}

func TestExtractTimings_ExplicitMeasurementsWin(t *testing.T) {
	payload := map[string]any{
		"measurements": map[string]any{
			"db":   map[string]any{"value": float64(12)},
			"view": map[string]any{"value": 33.6},
		},
		"spans": []any{
			span(OpDBQuery, 100, 200), // would be 100000ms, must be ignored
		},
	}

	timings := ExtractTimings(payload)
	require.NotNil(t, timings.DBMS)
	require.NotNil(t, timings.ViewMS)
	assert.Equal(t, int64(12), *timings.DBMS)
	assert.Equal(t, int64(34), *timings.ViewMS)
}

func TestExtractTimings_SummedFromSpans(t *testing.T) {
	payload := map[string]any{
		"spans": []any{
			span(OpDBQuery, 1000.000, 1000.0042),    // ~4ms
			span(OpDBQuery, 1000.010, 1000.0183),    // ~8ms
			span(OpViewRender, 1000.020, 1000.095),  // 75ms
			span("http.client", 1000.1, 1000.9),     // unrelated op
		},
	}

	timings := ExtractTimings(payload)
	require.NotNil(t, timings.DBMS)
	require.NotNil(t, timings.ViewMS)
	assert.Equal(t, int64(12), *timings.DBMS)
	assert.Equal(t, int64(75), *timings.ViewMS)
}

func TestExtractTimings_NoMatchingSpansMeansAbsent(t *testing.T) {
	payload := map[string]any{
		"spans": []any{
			span("http.client", 1000, 1001),
		},
	}

	timings := ExtractTimings(payload)
	assert.Nil(t, timings.DBMS)
	assert.Nil(t, timings.ViewMS)
}

func TestExtractTimings_ZeroDurationNotReported(t *testing.T) {
	payload := map[string]any{
		"spans": []any{
			span(OpDBQuery, 1000, 1000),
		},
	}

	timings := ExtractTimings(payload)
	assert.Nil(t, timings.DBMS, "zero total must be absent, not zero")
}

func TestExtractTimings_EndTimestampAlias(t *testing.T) {
	payload := map[string]any{
		"spans": []any{
			map[string]any{
				"op":              OpDBQuery,
				"start_timestamp": float64(10),
				"end_timestamp":   10.05,
			},
		},
	}

	timings := ExtractTimings(payload)
	require.NotNil(t, timings.DBMS)
	assert.Equal(t, int64(50), *timings.DBMS)
}

func TestExtractTimings_EmptyPayload(t *testing.T) {
	timings := ExtractTimings(map[string]any{})
	assert.Nil(t, timings.DBMS)
	assert.Nil(t, timings.ViewMS)
}
