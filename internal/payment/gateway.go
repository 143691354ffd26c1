package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"propmarket-be/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ProviderPaystack    = "paystack"
	ProviderFlutterwave = "flutterwave"

	defaultGatewayTimeout = 30 * time.Second
)

// Gateway normalizes one payment provider's REST API. Every variant takes
// minor units on the way in and reports major units on the way out, whatever
// the provider's own convention is.
type Gateway interface {
	Name() string
	InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*VerifyResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	// GetPaymentDetails returns the provider's raw payload, for diagnostics only.
	GetPaymentDetails(ctx context.Context, reference string) (json.RawMessage, error)
}

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string // optional, the variant generates one when empty
	CallbackURL string
	FirstName   string
	LastName    string
	Phone       string
	Metadata    map[string]interface{}
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type VerifyResponse struct {
	Success     bool                   `json:"success"`
	Reference   string                 `json:"reference"`
	AmountMajor decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Status      string                 `json:"status"`
	PaidAt      *time.Time             `json:"paidAt,omitempty"`
	Customer    Customer               `json:"customer"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type RefundRequest struct {
	Reference   string `json:"reference"`
	AmountMinor *int64 `json:"amount,omitempty"` // nil refunds the full amount
	Reason      string `json:"reason,omitempty"`
	// Currency is taken from the stored transaction, never from the caller.
	Currency string `json:"-"`
}

type RefundResponse struct {
	Success        bool            `json:"success"`
	Reference      string          `json:"reference"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	Message        string          `json:"message"`
}

type GatewayConfig struct {
	PaystackSecretKey    string
	FlutterwaveSecretKey string
	Timeout              time.Duration
}

// NewGateway selects the provider variant once at startup.
func NewGateway(provider string, cfg GatewayConfig) (Gateway, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderPaystack:
		if cfg.PaystackSecretKey == "" {
			return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is not configured")
		}
		return NewPaystackGateway(cfg.PaystackSecretKey, client), nil
	case ProviderFlutterwave:
		if cfg.FlutterwaveSecretKey == "" {
			return nil, fmt.Errorf("FLUTTERWAVE_SECRET_KEY is not configured")
		}
		return NewFlutterwaveGateway(cfg.FlutterwaveSecretKey, client), nil
	default:
		return nil, fmt.Errorf("invalid payment provider %q: must be %q or %q",
			provider, ProviderPaystack, ProviderFlutterwave)
	}
}

// providerCall performs one authenticated JSON request and returns the body
// of a 2xx answer. Anything else becomes a *GatewayError.
type providerCall struct {
	client   *http.Client
	provider string
	secret   string
}

func (c providerCall) do(ctx context.Context, op, method, url string, body interface{}) ([]byte, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("provider", c.provider),
		zap.String("op", op),
	)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &GatewayError{Provider: c.provider, Op: op, Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &GatewayError{Provider: c.provider, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("provider request failed", zap.Error(err))
		return nil, &GatewayError{Provider: c.provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read provider response", zap.Error(err))
		return nil, &GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return nil, &GatewayError{
			Provider:   c.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBody, "request rejected"),
		}
	}

	return respBody, nil
}

// providerMessage pulls the "message" field both providers put in their
// envelopes, falling back to a short excerpt of the body.
func providerMessage(body []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return fallback
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// decodeMetadata tolerates providers sending "" or null instead of an object.
func decodeMetadata(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// fallbackReference is used when the caller did not supply a reference.
func fallbackReference(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return strings.ToUpper(fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix))
}
