package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/outreach-engine/internal/service/compliance"
)

// Unsubscribe processes a one-click unsubscribe link. The response is a
// plain HTML page because the caller is a person in a mail client, not
// an API consumer.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := h.compliance.ProcessUnsubscribe(r.Context(), token)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case errors.Is(err, compliance.ErrTokenNotFound):
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, unsubscribePage("Link not recognized",
			"This unsubscribe link is not valid. If you believe this is an error, reply to the original email."))
	case errors.Is(err, compliance.ErrTokenUsed):
		// Already processed. Confirm rather than alarm.
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, unsubscribePage("You're unsubscribed",
			"You had already been removed from this list. No further emails will be sent."))
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, unsubscribePage("Something went wrong",
			"We could not process your request. Please try the link again later."))
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, unsubscribePage("You're unsubscribed",
			"You have been removed from this list and will receive no further emails."))
	}
}

func unsubscribePage(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; max-width: 480px; margin: 80px auto;">
<h2>%s</h2>
<p>%s</p>
</body>
</html>`, title, title, message)
}
