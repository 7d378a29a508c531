package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldService     = "service"
	FieldProjectID   = "project_id"
	FieldProjectSlug = "project_slug"
	FieldEventID     = "event_id"
	FieldItemType    = "item_type"
	FieldFingerprint = "fingerprint"
	FieldIssueID     = "issue_id"
	FieldIP          = "ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// ProjectID returns a slog attribute for the project ID.
func ProjectID(id int64) slog.Attr {
	return slog.Int64(FieldProjectID, id)
}

// ProjectSlug returns a slog attribute for the project slug.
func ProjectSlug(slug string) slog.Attr {
	return slog.String(FieldProjectSlug, slug)
}

// EventID returns a slog attribute for the event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// ItemType returns a slog attribute for the envelope item type.
func ItemType(t string) slog.Attr {
	return slog.String(FieldItemType, t)
}

// Fingerprint returns a slog attribute for an issue fingerprint.
func Fingerprint(fp string) slog.Attr {
	return slog.String(FieldFingerprint, fp)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Err returns a slog attribute for an error.
func Err(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
