package handler

import (
	"fmt"
	"net/http"
	"strings"

	"propmarket-be/internal/logger"
	"propmarket-be/internal/payment"
	"propmarket-be/internal/utils"

	"go.uber.org/zap"
)

const verificationFailedMessage = "Payment verification failed"

// outcome is the per-type message and frontend redirect shown after a
// successful payment. A new payment type needs one row here.
type outcome struct {
	message  string
	redirect string // fmt template taking the entity id
}

var outcomes = map[payment.PaymentType]outcome{
	payment.PaymentTypeInspection: {
		message:  "Payment verified successfully. Your inspection has been scheduled.",
		redirect: "/appointments/inspections/%d",
	},
	payment.PaymentTypeConsultation: {
		message:  "Payment verified successfully. Your consultation has been scheduled.",
		redirect: "/appointments/consultations/%d",
	},
	payment.PaymentTypeOrder: {
		message:  "Payment verified successfully. Your order is being processed.",
		redirect: "/orders/%d",
	},
}

type CallbackResponse struct {
	Success     bool                `json:"success"`
	Reference   string              `json:"reference"`
	EntityID    uint                `json:"entityId"`
	EntityType  payment.PaymentType `json:"entityType"`
	Amount      int64               `json:"amount"`
	Status      payment.Status      `json:"status"`
	Message     string              `json:"message"`
	RedirectURL *string             `json:"redirectUrl"`
}

// Callback is the single endpoint every provider redirects the payer to.
// Flutterwave appends tx_ref rather than reference.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reference := strings.TrimSpace(q.Get("reference"))
	if reference == "" {
		reference = strings.TrimSpace(q.Get("tx_ref"))
	}
	if reference == "" {
		utils.WriteJSONError(w, "reference is required", http.StatusBadRequest)
		return
	}

	log := logger.FromCtx(r.Context()).With(
		zap.String("handler", "Callback"),
		zap.String("reference", reference),
	)

	result, err := h.svc.VerifyPaymentTransaction(r.Context(), reference)
	if err != nil {
		log.Warn("payment callback verification failed", zap.Error(err))
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, buildCallbackResponse(result))
}

func buildCallbackResponse(v *payment.Verification) CallbackResponse {
	resp := CallbackResponse{
		Success:    v.Success,
		Reference:  v.Reference,
		EntityID:   v.EntityID,
		EntityType: v.EntityType,
		Amount:     v.AmountMinor,
		Status:     v.Status,
		Message:    verificationFailedMessage,
	}
	if !v.Success {
		return resp
	}

	o, ok := outcomes[v.EntityType]
	if !ok {
		resp.Message = "Payment verified successfully"
		return resp
	}
	resp.Message = o.message
	resp.RedirectURL = utils.StrPtr(fmt.Sprintf(o.redirect, v.EntityID))
	return resp
}
