package resilience

import (
	"fmt"
	"net/http"

	"rag_chatbot/internal/domain"
)

// StatusError maps an HTTP status from a model service to the error taxonomy.
// Overload and gateway statuses count as the service being unavailable; anything
// else wraps fallback.
func StatusError(service string, code int, detail string, fallback error) error {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s status %d: %s", domain.ErrServiceUnavailable, service, code, detail)
	}
	return fmt.Errorf("%w: %s status %d: %s", fallback, service, code, detail)
}
