package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"propmarket-be/internal/logger"

	"go.uber.org/zap"
)

const paystackBaseURL = "https://api.paystack.co"

var paystackChannels = []string{"card", "bank", "ussd", "qr", "mobile_money", "bank_transfer"}

// paystackGateway talks to Paystack, which is minor-unit native (kobo).
type paystackGateway struct {
	call    providerCall
	baseURL string
}

// paystackEnvelope is the {status, message, data} wrapper Paystack uses for
// every response. Status is a boolean.
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
	Customer  struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
	Metadata json.RawMessage `json:"metadata"`
}

func NewPaystackGateway(secretKey string, httpClient *http.Client) Gateway {
	if secretKey == "" {
		logger.L().Warn("Paystack secret key is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGatewayTimeout}
	}

	return &paystackGateway{
		call: providerCall{
			client:   httpClient,
			provider: ProviderPaystack,
			secret:   secretKey,
		},
		baseURL: paystackBaseURL,
	}
}

func (p *paystackGateway) Name() string { return ProviderPaystack }

func (p *paystackGateway) InitializePayment(ctx context.Context, in InitializeRequest) (*InitializeResponse, error) {
	if in.AmountMinor <= 0 {
		return nil, validationError("amount must be greater than zero")
	}

	reference := in.Reference
	if reference == "" {
		reference = fallbackReference("PAY")
	}
	currency := in.Currency
	if currency == "" {
		currency = "NGN"
	}

	body := map[string]interface{}{
		"email":        in.Email,
		"amount":       in.AmountMinor,
		"currency":     currency,
		"reference":    reference,
		"callback_url": in.CallbackURL,
		"metadata":     in.Metadata,
		"channels":     paystackChannels,
	}

	env, err := p.send(ctx, "initialize", http.MethodPost, p.baseURL+"/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &GatewayError{Provider: ProviderPaystack, Op: "initialize", Message: "malformed response", Err: err}
	}
	if data.Reference == "" {
		data.Reference = reference
	}

	logger.FromCtx(logger.WithReference(ctx, data.Reference)).Info("paystack payment initialized",
		zap.Int64("amount_minor", in.AmountMinor),
	)

	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (p *paystackGateway) VerifyPayment(ctx context.Context, reference string) (*VerifyResponse, error) {
	env, err := p.send(ctx, "verify", http.MethodGet, p.verifyURL(reference), nil)
	if err != nil {
		return nil, err
	}

	var data paystackTransaction
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &GatewayError{Provider: ProviderPaystack, Op: "verify", Message: "malformed response", Err: err}
	}

	return &VerifyResponse{
		Success:     data.Status == "success",
		Reference:   data.Reference,
		AmountMajor: ToMajor(data.Amount),
		Currency:    data.Currency,
		Status:      data.Status,
		PaidAt:      data.PaidAt,
		Customer: Customer{
			Email:     data.Customer.Email,
			FirstName: data.Customer.FirstName,
			LastName:  data.Customer.LastName,
		},
		Metadata: decodeMetadata(data.Metadata),
	}, nil
}

func (p *paystackGateway) RefundPayment(ctx context.Context, in RefundRequest) (*RefundResponse, error) {
	currency := in.Currency
	if currency == "" {
		currency = "NGN"
	}

	body := map[string]interface{}{
		"transaction": in.Reference,
		"currency":    currency,
	}
	if in.AmountMinor != nil {
		if *in.AmountMinor <= 0 {
			return nil, validationError("refund amount must be greater than zero")
		}
		body["amount"] = *in.AmountMinor
	}
	if in.Reason != "" {
		body["customer_note"] = in.Reason
		body["merchant_note"] = in.Reason
	}

	env, err := p.send(ctx, "refund", http.MethodPost, p.baseURL+"/refund", body)
	if err != nil {
		return nil, err
	}

	refunded := int64(0)
	if in.AmountMinor != nil {
		refunded = *in.AmountMinor
	} else {
		var data struct {
			Amount int64 `json:"amount"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil {
			refunded = data.Amount
		}
	}

	return &RefundResponse{
		Success:        true,
		Reference:      in.Reference,
		RefundedAmount: ToMajor(refunded),
		Message:        env.Message,
	}, nil
}

func (p *paystackGateway) GetPaymentDetails(ctx context.Context, reference string) (json.RawMessage, error) {
	env, err := p.send(ctx, "details", http.MethodGet, p.verifyURL(reference), nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (p *paystackGateway) verifyURL(reference string) string {
	return p.baseURL + "/transaction/verify/" + url.PathEscape(reference)
}

// send performs the call and unwraps the envelope; status=false is a failure
// even on HTTP 200.
func (p *paystackGateway) send(ctx context.Context, op, method, endpoint string, body interface{}) (*paystackEnvelope, error) {
	raw, err := p.call.do(ctx, op, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &GatewayError{Provider: ProviderPaystack, Op: op, Message: "malformed response", Err: err}
	}
	if !env.Status {
		return nil, &GatewayError{Provider: ProviderPaystack, Op: op, Message: providerMessage(raw, "request rejected")}
	}
	return &env, nil
}
