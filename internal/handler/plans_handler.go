package handler

import (
	"net/http"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Plans
// ============================================================

func listPlansHandler(svc *service.PlanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans := svc.ListPlans(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"plans": plans,
			"total": len(plans),
		})
	}
}

func getPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := svc.GetPlan(r.Context(), domain.Tier(chi.URLParam(r, "tier")))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func firstPaymentHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fp, err := svc.GetFirstPayment(r.Context(), domain.Tier(chi.URLParam(r, "tier")))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, fp)
	}
}
