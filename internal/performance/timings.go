// Package performance derives request timing and query-pattern analytics
// from transaction payloads. Both analyses are pure functions.
package performance

import (
	"math"

	"github.com/faultline-systems/faultline/internal/jsonmap"
)

// Span operations instrumented by the Rails SDK.
const (
	OpDBQuery    = "db.sql.active_record"
	OpViewRender = "view.process_action.action_controller"
)

// Timings holds derived millisecond totals. A nil field means the
// corresponding timing could not be derived (distinct from zero).
type Timings struct {
	DBMS   *int64
	ViewMS *int64
}

// ExtractTimings derives DB and view timings for a transaction payload.
// Explicit measurements win; otherwise timings are summed from the span
// list. Totals are only reported when strictly positive.
func ExtractTimings(payload map[string]any) Timings {
	var t Timings

	measurements := jsonmap.Map(payload, "measurements")
	if v, ok := measurementValue(measurements, "db"); ok {
		t.DBMS = &v
	}
	if v, ok := measurementValue(measurements, "view"); ok {
		t.ViewMS = &v
	}
	if t.DBMS != nil || t.ViewMS != nil {
		return t
	}

	var dbTotal, viewTotal int64
	var sawDB, sawView bool
	for _, span := range jsonmap.Objects(payload, "spans") {
		ms, ok := spanDurationMS(span)
		if !ok {
			continue
		}
		switch jsonmap.String(span, "op") {
		case OpDBQuery:
			dbTotal += ms
			sawDB = true
		case OpViewRender:
			viewTotal += ms
			sawView = true
		}
	}

	if sawDB && dbTotal > 0 {
		t.DBMS = &dbTotal
	}
	if sawView && viewTotal > 0 {
		t.ViewMS = &viewTotal
	}
	return t
}

func measurementValue(measurements map[string]any, key string) (int64, bool) {
	entry := jsonmap.Map(measurements, key)
	if entry == nil {
		return 0, false
	}
	v, ok := jsonmap.Float(entry, "value")
	if !ok {
		return 0, false
	}
	return int64(math.Round(v)), true
}

// spanDurationMS computes a span's duration in milliseconds, rounded to the
// nearest integer. SDKs send the end timestamp as either "timestamp" or
// "end_timestamp", both epoch seconds.
func spanDurationMS(span map[string]any) (int64, bool) {
	start, ok := jsonmap.Float(span, "start_timestamp")
	if !ok {
		return 0, false
	}
	end, ok := jsonmap.Float(span, "timestamp")
	if !ok {
		end, ok = jsonmap.Float(span, "end_timestamp")
		if !ok {
			return 0, false
		}
	}
	return int64(math.Round((end - start) * 1000)), true
}
