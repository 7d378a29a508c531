package seeder

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/faultline-systems/faultline/internal/envelope"
)

var errorTypes = []string{
	"ActiveRecord::RecordNotFound",
	"NoMethodError",
	"ArgumentError",
	"Timeout::Error",
	"ActionController::ParameterMissing",
	"Net::ReadTimeout",
}

var controllers = []string{
	"OrdersController#index",
	"OrdersController#show",
	"UsersController#update",
	"CheckoutController#create",
	"SearchController#index",
}

var tables = []string{"orders", "users", "line_items", "products", "sessions"}

// GenerateEnvelope produces one synthetic envelope for the named scenario.
func GenerateEnvelope(scenario string) *envelope.Envelope {
	switch scenario {
	case ScenarioTransaction:
		return transactionEnvelope(false)
	case ScenarioNPlusOne:
		return transactionEnvelope(true)
	default:
		return errorEnvelope()
	}
}

func eventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func errorEnvelope() *envelope.Envelope {
	id := eventID()
	errType := errorTypes[rand.Intn(len(errorTypes))]

	frames := make([]any, 0, 4)
	for i := 0; i < 3+rand.Intn(3); i++ {
		frames = append(frames, map[string]any{
			"filename": fmt.Sprintf("app/%s/%s.rb", []string{"models", "controllers", "services"}[rand.Intn(3)], gofakeit.Word()),
			"function": gofakeit.Word(),
			"lineno":   rand.Intn(400) + 1,
		})
	}

	payload := map[string]any{
		"event_id":  id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   gofakeit.Sentence(6),
		"exception": map[string]any{
			"values": []any{
				map[string]any{
					"type":  errType,
					"value": gofakeit.Sentence(4),
					"stacktrace": map[string]any{
						"frames": frames,
					},
				},
			},
		},
		"server_name": gofakeit.DomainName(),
		"environment": "production",
	}

	return &envelope.Envelope{
		Headers: map[string]any{
			"event_id": id,
			"sent_at":  time.Now().UTC().Format(time.RFC3339),
		},
		Items: []envelope.Item{
			{
				Headers: map[string]any{"type": envelope.ItemTypeEvent},
				Payload: envelope.JSONPayload(payload),
			},
		},
	}
}

func transactionEnvelope(nPlusOne bool) *envelope.Envelope {
	id := eventID()
	name := controllers[rand.Intn(len(controllers))]
	start := float64(time.Now().Add(-time.Second).UnixNano()) / 1e9
	end := start + 0.05 + rand.Float64()*0.4

	spans := []any{
		span("db.sql.active_record", start+0.001, start+0.001+rand.Float64()*0.02),
		span("view.process_action.action_controller", start+0.03, end-0.005),
	}

	table := tables[rand.Intn(len(tables))]
	var crumbs []any
	queryCount := 1 + rand.Intn(3)
	if nPlusOne {
		queryCount = 5 + rand.Intn(10)
	}
	for i := 0; i < queryCount; i++ {
		crumbs = append(crumbs, map[string]any{
			"category": "sql.active_record",
			"message":  fmt.Sprintf("SELECT * FROM %s WHERE id = %d", table, rand.Intn(10000)+1),
		})
	}

	payload := map[string]any{
		"event_id":        id,
		"type":            "transaction",
		"transaction":     name,
		"start_timestamp": start,
		"timestamp":       end,
		"spans":           spans,
		"breadcrumbs":     map[string]any{"values": crumbs},
	}

	return &envelope.Envelope{
		Headers: map[string]any{
			"event_id": id,
			"sent_at":  time.Now().UTC().Format(time.RFC3339),
		},
		Items: []envelope.Item{
			{
				Headers: map[string]any{"type": envelope.ItemTypeTransaction},
				Payload: envelope.JSONPayload(payload),
			},
		},
	}
}

func span(op string, start, end float64) map[string]any {
	return map[string]any{
		"op":              op,
		"span_id":         eventID()[:16],
		"start_timestamp": start,
		"timestamp":       end,
	}
}
