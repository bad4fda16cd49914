package apperr

import "net/http"

// clientSafeMessages are shown instead of the raw error text for service-level failures.
var clientSafeMessages = map[Kind]string{
	StorageUnavailable: "storage temporarily unavailable",
	ModelUnavailable:   "embedding model unavailable",
	TransactionFailure: "transaction failed and was rolled back",
	Internal:           "internal server error",
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists:
		return http.StatusConflict
	case StorageUnavailable, ModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SanitizeForClient returns a message that can cross the API boundary.
// Client errors keep their full text; service failures get a fixed message
// and the caller is expected to log the full error.
func SanitizeForClient(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	if safe, ok := clientSafeMessages[kind]; ok {
		return safe
	}
	return err.Error()
}
