// Package service contains the business rules of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → decodes JSON, writes responses
//	Service (business layer) → validates, normalizes, enforces roles
//	Repository (data layer)  → reads/writes rows through GORM
//
// Services take primitives and payload structs, never *http.Request, and
// return *apperror.AppError values. The handler layer turns those into
// status codes in exactly one place.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, not *gorm.DB. Tests in this
// package pass in-memory fakes; main.go passes the gormdb stores.
package service

import (
	"strings"
	"time"
)

// Clock returns the current time. Tests replace it to pin "this week".
type Clock func() time.Time

// optionalText trims s and maps an empty result to nil, so blank form
// fields are stored as NULL rather than "".
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
