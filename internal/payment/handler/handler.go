package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"propmarket-be/internal/logger"
	"propmarket-be/internal/payment"
	"propmarket-be/internal/utils"

	"go.uber.org/zap"
)

type Handler struct {
	svc payment.Service
}

func NewHandler(svc payment.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the payment routes under prefix (for example "/api/v1").
// requireAuth and requireAdmin guard the business-module routes.
func (h *Handler) Register(mux *http.ServeMux, prefix string, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	base := prefix + "/payment"

	mux.HandleFunc("GET "+base+"/callback", h.Callback)
	mux.HandleFunc("GET "+base+"/provider", h.Provider)

	mux.Handle("GET "+base+"/transaction/{reference}", requireAuth(http.HandlerFunc(h.GetTransaction)))
	mux.Handle("GET "+base+"/me", requireAuth(http.HandlerFunc(h.MyPayments)))

	mux.Handle("GET "+base+"/entity/{type}/{id}", requireAdmin(http.HandlerFunc(h.EntityPayments)))
	mux.Handle("GET "+base+"/details/{reference}", requireAdmin(http.HandlerFunc(h.Details)))
	mux.Handle("POST "+base+"/refund", requireAdmin(http.HandlerFunc(h.Refund)))
}

func (h *Handler) Provider(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"provider": h.svc.ProviderName()})
}

// GetTransaction returns one transaction to its payer or to an admin. Other
// callers get the same 404 as for an unknown reference.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	tx, err := h.svc.GetPaymentByReference(r.Context(), reference)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	if !utils.IsAdmin(r.Context()) && tx.UserID != userID {
		writeError(w, fmt.Errorf("%w: %s", payment.ErrNotFound, reference))
		return
	}

	utils.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) MyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txs, err := h.svc.GetUserPayments(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) EntityPayments(w http.ResponseWriter, r *http.Request) {
	entityID, err := utils.ToUint(r.PathValue("id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid entity id", http.StatusBadRequest)
		return
	}

	txs, err := h.svc.GetPaymentsByEntity(r.Context(), payment.PaymentType(r.PathValue("type")), entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	raw, err := h.svc.GetPaymentDetails(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, raw)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req payment.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.svc.RefundPayment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.FromCtx(r.Context()).Info("refund submitted",
		zap.String("reference", req.Reference),
		zap.String("refunded_amount", resp.RefundedAmount.String()),
	)
	utils.WriteJSON(w, http.StatusOK, resp)
}

// writeError maps payment errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrValidation):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payment.ErrNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payment.ErrConflict):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payment.ErrGateway):
		utils.WriteJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
