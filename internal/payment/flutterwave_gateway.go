package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"propmarket-be/internal/logger"
	"propmarket-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	flutterwaveBaseURL        = "https://api.flutterwave.com/v3"
	flutterwavePaymentOptions = "card,mobilemoney,ussd,banktransfer"
	flutterwaveSuccess        = "success"
)

// flutterwaveGateway talks to Flutterwave, which is major-unit native. Amounts
// are converted from minor units before they leave the process.
type flutterwaveGateway struct {
	call    providerCall
	baseURL string
}

// flutterwaveEnvelope carries status as the string "success" or "error".
type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwaveTransaction struct {
	ID        json.Number     `json:"id"`
	TxRef     string          `json:"tx_ref"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt *time.Time      `json:"created_at"`
	Customer  struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Meta json.RawMessage `json:"meta"`
}

func NewFlutterwaveGateway(secretKey string, httpClient *http.Client) Gateway {
	if secretKey == "" {
		logger.L().Warn("Flutterwave secret key is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGatewayTimeout}
	}

	return &flutterwaveGateway{
		call: providerCall{
			client:   httpClient,
			provider: ProviderFlutterwave,
			secret:   secretKey,
		},
		baseURL: flutterwaveBaseURL,
	}
}

func (f *flutterwaveGateway) Name() string { return ProviderFlutterwave }

func (f *flutterwaveGateway) InitializePayment(ctx context.Context, in InitializeRequest) (*InitializeResponse, error) {
	if in.AmountMinor <= 0 {
		return nil, validationError("amount must be greater than zero")
	}

	reference := in.Reference
	if reference == "" {
		reference = fallbackReference("FLW")
	}
	currency := in.Currency
	if currency == "" {
		currency = "NGN"
	}

	body := map[string]interface{}{
		"tx_ref":          reference,
		"amount":          json.Number(ToMajor(in.AmountMinor).String()),
		"currency":        currency,
		"redirect_url":    in.CallbackURL,
		"payment_options": flutterwavePaymentOptions,
		"customer": map[string]interface{}{
			"email":       in.Email,
			"name":        joinName(in.FirstName, in.LastName),
			"phonenumber": utils.NormalizePhoneNG(in.Phone),
		},
		"customizations": map[string]interface{}{
			"title":       "Payment",
			"description": "Payment for services",
		},
		"meta": in.Metadata,
	}

	env, err := f.send(ctx, "initialize", http.MethodPost, f.baseURL+"/payments", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link       string `json:"link"`
		AccessCode string `json:"access_code"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &GatewayError{Provider: ProviderFlutterwave, Op: "initialize", Message: "malformed response", Err: err}
	}

	logger.FromCtx(logger.WithReference(ctx, reference)).Info("flutterwave payment initialized",
		zap.Int64("amount_minor", in.AmountMinor),
	)

	return &InitializeResponse{
		AuthorizationURL: data.Link,
		AccessCode:       data.AccessCode,
		Reference:        reference,
	}, nil
}

func (f *flutterwaveGateway) VerifyPayment(ctx context.Context, reference string) (*VerifyResponse, error) {
	data, err := f.lookup(ctx, "verify", reference)
	if err != nil {
		return nil, err
	}

	first, last := splitName(data.Customer.Name)

	return &VerifyResponse{
		Success:     data.Status == "successful",
		Reference:   data.TxRef,
		AmountMajor: data.Amount,
		Currency:    data.Currency,
		Status:      data.Status,
		PaidAt:      data.CreatedAt,
		Customer: Customer{
			Email:     data.Customer.Email,
			FirstName: first,
			LastName:  last,
		},
		Metadata: decodeMetadata(data.Meta),
	}, nil
}

// RefundPayment needs Flutterwave's own transaction id, so it resolves the
// reference first.
func (f *flutterwaveGateway) RefundPayment(ctx context.Context, in RefundRequest) (*RefundResponse, error) {
	if in.AmountMinor != nil && *in.AmountMinor <= 0 {
		return nil, validationError("refund amount must be greater than zero")
	}

	tx, err := f.lookup(ctx, "refund", in.Reference)
	if err != nil {
		return nil, err
	}
	if tx.ID.String() == "" {
		return nil, &GatewayError{Provider: ProviderFlutterwave, Op: "refund", Message: "transaction id missing from provider response"}
	}

	body := map[string]interface{}{}
	refunded := tx.Amount
	if in.AmountMinor != nil {
		refunded = ToMajor(*in.AmountMinor)
		body["amount"] = json.Number(refunded.String())
	}
	if in.Reason != "" {
		body["comments"] = in.Reason
	}

	endpoint := fmt.Sprintf("%s/transactions/%s/refund", f.baseURL, url.PathEscape(tx.ID.String()))
	env, err := f.send(ctx, "refund", http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	return &RefundResponse{
		Success:        true,
		Reference:      in.Reference,
		RefundedAmount: refunded,
		Message:        env.Message,
	}, nil
}

func (f *flutterwaveGateway) GetPaymentDetails(ctx context.Context, reference string) (json.RawMessage, error) {
	env, err := f.send(ctx, "details", http.MethodGet, f.verifyURL(reference), nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (f *flutterwaveGateway) lookup(ctx context.Context, op, reference string) (*flutterwaveTransaction, error) {
	env, err := f.send(ctx, op, http.MethodGet, f.verifyURL(reference), nil)
	if err != nil {
		return nil, err
	}

	var data flutterwaveTransaction
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &GatewayError{Provider: ProviderFlutterwave, Op: op, Message: "malformed response", Err: err}
	}
	return &data, nil
}

func (f *flutterwaveGateway) verifyURL(reference string) string {
	return f.baseURL + "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
}

func (f *flutterwaveGateway) send(ctx context.Context, op, method, endpoint string, body interface{}) (*flutterwaveEnvelope, error) {
	raw, err := f.call.do(ctx, op, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &GatewayError{Provider: ProviderFlutterwave, Op: op, Message: "malformed response", Err: err}
	}
	if env.Status != flutterwaveSuccess {
		return nil, &GatewayError{Provider: ProviderFlutterwave, Op: op, Message: providerMessage(raw, "request rejected")}
	}
	return &env, nil
}
