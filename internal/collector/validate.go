package collector

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goodtune/webtime/internal/storage"
)

// Wire field bounds.
const (
	maxAppNameLength = 253 // longest valid DNS hostname
	maxTotalSeconds  = 86400
)

// FieldError describes one invalid field of a usage log request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateUsageLog checks every wire field and returns one error per
// offending field. Validation never causes partial writes: the caller only
// stores a record that passed completely.
func validateUsageLog(entry storage.UsageLogEntry) []FieldError {
	var errs []FieldError

	if _, err := uuid.Parse(entry.DeviceID); err != nil {
		errs = append(errs, FieldError{Field: "deviceId", Message: "must be a valid UUID"})
	}

	if _, err := time.Parse(storage.DateFormat, entry.Date); err != nil {
		errs = append(errs, FieldError{Field: "date", Message: "must be a valid YYYY-MM-DD date"})
	}

	if n := len(entry.AppName); n < 1 || n > maxAppNameLength {
		errs = append(errs, FieldError{
			Field:   "appName",
			Message: fmt.Sprintf("length must be between 1 and %d", maxAppNameLength),
		})
	}

	if entry.TotalSeconds < 1 || entry.TotalSeconds > maxTotalSeconds {
		errs = append(errs, FieldError{
			Field:   "totalSeconds",
			Message: fmt.Sprintf("must be between 1 and %d", maxTotalSeconds),
		})
	}

	if _, err := time.Parse(time.RFC3339, entry.LastUpdated); err != nil {
		errs = append(errs, FieldError{Field: "lastUpdated", Message: "must be an RFC 3339 instant"})
	}

	return errs
}
