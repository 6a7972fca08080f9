package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/services/reconcile"
	"github.com/scribeline/payment-engine/pkg/resilience"
)

// AdminHandler exposes the reconciliation sweeps behind a shared token.
// These endpoints are idempotent and safe to trigger from a scheduler.
type AdminHandler struct {
	reconcile  *reconcile.Service
	adminToken string
	timeouts   *resilience.TimeoutConfig
	logger     *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reconcileService *reconcile.Service, adminToken string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		reconcile:  reconcileService,
		adminToken: adminToken,
		timeouts:   resilience.DefaultTimeoutConfig(),
		logger:     logger,
	}
}

// authenticateRequest checks the shared admin token. Accepts either an
// X-Admin-Token header or an Authorization: Bearer token.
func (h *AdminHandler) authenticateRequest(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}

	token := r.Header.Get("X-Admin-Token")
	if token == "" {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// FixPaymentStatuses handles POST /admin/fix-payment-statuses. It polls
// gateways for records stuck pending and settles any that completed.
func (h *AdminHandler) FixPaymentStatuses(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized admin request", zap.String("path", r.URL.Path))
		respondError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
		return
	}

	ctx, cancel := h.timeouts.SweepContext(r.Context())
	defer cancel()

	report, err := h.reconcile.FixPaymentStatuses(ctx)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Payment status sweep completed",
		zap.Int("records_checked", report.RecordsChecked),
		zap.Int("records_settled", report.RecordsSettled),
		zap.Int("records_failed", report.RecordsFailed),
		zap.Int("poll_errors", report.PollErrors))

	respondJSON(w, h.logger, http.StatusOK, report)
}

// FixPaymentCalculations handles POST /admin/fix-payment-calculations. It
// recomputes every agreement ledger from installment state.
func (h *AdminHandler) FixPaymentCalculations(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized admin request", zap.String("path", r.URL.Path))
		respondError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
		return
	}

	ctx, cancel := h.timeouts.SweepContext(r.Context())
	defer cancel()

	report, err := h.reconcile.FixPaymentCalculations(ctx)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Ledger recalculation sweep completed",
		zap.Int("agreements_checked", report.AgreementsChecked),
		zap.Int("agreements_corrected", report.AgreementsCorrected),
		zap.Int("installments_repaired", report.InstallmentsRepaired))

	respondJSON(w, h.logger, http.StatusOK, report)
}

// ReconcileAgreement handles POST /admin/reconcile/{agreement_id} for a
// single-agreement repair.
func (h *AdminHandler) ReconcileAgreement(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized admin request", zap.String("path", r.URL.Path))
		respondError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
		return
	}

	agreementID := r.PathValue("agreement_id")
	if agreementID == "" {
		respondError(w, h.logger, http.StatusBadRequest, "INVALID_AGREEMENT_ID", "agreement_id is required")
		return
	}

	report, err := h.reconcile.ReconcileAgreement(r.Context(), agreementID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, report)
}
