package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Referrals
// ============================================================

func getReferralHandler(svc *service.ReferralService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /users/{userId}/referral")
		defer span.End()

		summary, err := svc.GetReferral(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// completeReferralHandler answers 201 when the referral is credited and 200
// when the event is a replay.
func completeReferralHandler(svc *service.ReferralService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /referrals/completions")
		defer span.End()
		span.SetAttributes(attribute.String("webhook.caller", CallerFromContext(ctx)))

		var event domain.ReferralEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.CompleteReferral(ctx, event)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
	}
}
