package app

import (
	"errors"
	"fmt"
	"net/http"

	"mindtree/internal/archive"
	"mindtree/internal/auth"
	"mindtree/internal/export"
	"mindtree/internal/tree"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func archiveUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive storage not configured", nil)
}

func historyUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "History not configured", nil)
}

// mapError turns an error into the response envelope fields. Anything
// unrecognised is a 500 without internal detail.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var treeErr *tree.Error
	if errors.As(err, &treeErr) {
		switch treeErr.Kind {
		case tree.KindNotFound:
			return http.StatusNotFound, "NOT_FOUND", treeErr.Message, idDetails(treeErr.ID)
		case tree.KindInvalidOperation:
			if errors.Is(err, tree.ErrCycle) {
				return http.StatusUnprocessableEntity, "CYCLE_DETECTED", treeErr.Message, idDetails(treeErr.ID)
			}
			return http.StatusUnprocessableEntity, "INVALID_OPERATION", treeErr.Message, idDetails(treeErr.ID)
		case tree.KindPartialFailure:
			return http.StatusInternalServerError, "PARTIAL_FAILURE", "Delete partially failed", map[string]any{
				"remaining": treeErr.Remaining,
			}
		}
	}

	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, archive.ErrDisabled):
		return http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive storage not configured", nil
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func idDetails(id string) any {
	if id == "" {
		return nil
	}
	return map[string]any{"id": id}
}
