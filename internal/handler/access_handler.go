package handler

import (
	"net/http"

	"github.com/boddenberg/access-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Access card, next payment and bills
// ============================================================

func accessOverviewHandler(svc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/access")
		defer span.End()

		overview, err := svc.GetAccessOverview(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func nextPaymentHandler(svc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/next-payment")
		defer span.End()

		payment, err := svc.GetNextPayment(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, payment)
	}
}

func listBillsHandler(svc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/bills")
		defer span.End()

		bills, err := svc.ListBills(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"bills": bills,
			"total": len(bills),
		})
	}
}

func upcomingBillsHandler(svc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/bills/upcoming")
		defer span.End()

		limit, err := parseLimit(r, svc.UpcomingLimit())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bills, err := svc.UpcomingBills(ctx, chi.URLParam(r, "accountId"), limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"bills": bills,
			"total": len(bills),
		})
	}
}

func refreshAccountHandler(svc *service.AccessService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.InvalidateAccount(chi.URLParam(r, "accountId"))
		w.WriteHeader(http.StatusNoContent)
	}
}
