package httphandler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// maxWebhookBody matches the provider's own payload cap.
const maxWebhookBody = 25 << 20

// Inbound header names.
const (
	headerEvent     = "X-GitHub-Event"
	headerSignature = "X-Hub-Signature-256"
	headerDelivery  = "X-GitHub-Delivery"
	headerCIToken   = "X-CI-Token"
)

// ReceiveWebhook authenticates and dispatches a provider delivery. Benign
// no-ops such as untracked repositories still answer 200.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event := r.Header.Get(headerEvent)
	if event == "" {
		writeError(w, http.StatusBadRequest, "missing "+headerEvent+" header")
		return
	}

	outcome, err := h.svc.Webhooks.Handle(r.Context(), application.WebhookDelivery{
		Event:      event,
		Signature:  r.Header.Get(headerSignature),
		DeliveryID: r.Header.Get(headerDelivery),
		Body:       body,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AckResponse{Status: string(outcome)})
}

// BuildCallback applies the runner's result to a build. It is authenticated
// by the static CI key, not by repository secrets.
func (h *Handler) BuildCallback(w http.ResponseWriter, r *http.Request) {
	if !h.validCallbackKey(r.Header.Get(headerCIToken)) {
		h.logger.Warn("ci callback rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := buildIDParam(w, r)
	if !ok {
		return
	}

	var req BuildCallbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	detail, err := h.svc.Builds.HandleCallback(r.Context(), id, model.BuildResult{
		Status:        model.BuildStatus(req.Status),
		BuildNumber:   req.BuildNumber,
		FinishedAt:    req.FinishedAt,
		ConsoleOutput: req.ConsoleOutput,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBuildResponse(detail))
}

func (h *Handler) validCallbackKey(got string) bool {
	if h.callbackKey == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackKey)) == 1
}
