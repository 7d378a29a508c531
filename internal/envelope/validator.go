package envelope

import (
	"fmt"
	"time"
)

// Validate enforces structural invariants on a parsed envelope before
// dispatch. Any failure aborts processing of the entire envelope, unlike
// per-item dispatch failures which are isolated.
func Validate(env *Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: nil envelope", ErrValidation)
	}

	if raw, ok := env.Headers["sent_at"]; ok {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: sent_at is not a string", ErrValidation)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("%w: sent_at is not a valid timestamp: %v", ErrValidation, err)
		}
	}

	if len(env.Items) == 0 {
		return fmt.Errorf("%w: envelope has no items", ErrValidation)
	}

	for i := range env.Items {
		item := &env.Items[i]

		if item.Type() == "" {
			return fmt.Errorf("%w: item %d is missing a type", ErrValidation, i)
		}
		if item.Payload.Empty() {
			return fmt.Errorf("%w: item %d has an empty payload", ErrValidation, i)
		}

		// Re-checked for items constructed without going through Parse.
		if v, ok := item.Headers["length"]; ok {
			n, err := intFromJSON(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: item %d length must be a positive integer", ErrValidation, i)
			}
		}
	}

	return nil
}
