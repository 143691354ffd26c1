package payment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"propmarket-be/internal/logger"
	"propmarket-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service is the payment API business modules call. It is bound to exactly one
// Gateway for the life of the process.
type Service interface {
	CreatePaymentSession(ctx context.Context, in CreateSessionInput) (*Session, error)
	VerifyPaymentTransaction(ctx context.Context, reference string) (*Verification, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	GetPaymentDetails(ctx context.Context, reference string) (json.RawMessage, error)
	GetPaymentByReference(ctx context.Context, reference string) (*Transaction, error)
	GetPaymentsByEntity(ctx context.Context, paymentType PaymentType, entityID uint) ([]*Transaction, error)
	GetUserPayments(ctx context.Context, userID uint) ([]*Transaction, error)
	ProviderName() string
}

type ServiceConfig struct {
	CallbackURL string
	Currency    string
	Now         func() time.Time
}

type service struct {
	repo     Repository
	gateway  Gateway
	metrics  *metrics.Metrics
	refs     *referenceGenerator
	callback string
	currency string
	now      func() time.Time
}

func NewService(repo Repository, gateway Gateway, cfg ServiceConfig, m *metrics.Metrics) Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "NGN"
	}

	return &service{
		repo:     repo,
		gateway:  gateway,
		metrics:  m,
		refs:     newReferenceGenerator(now),
		callback: cfg.CallbackURL,
		currency: currency,
		now:      now,
	}
}

func (s *service) ProviderName() string {
	return s.gateway.Name()
}

func (s *service) CreatePaymentSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreatePaymentSession"),
		zap.String("payment_type", string(in.PaymentType)),
		zap.Uint("entity_id", in.EntityID),
		zap.Uint("user_id", in.UserID),
	)

	amountMinor, err := validateSessionInput(in)
	if err != nil {
		log.Warn("invalid payment session input", zap.Error(err))
		return nil, err
	}

	reference := s.refs.next(in.PaymentType, in.EntityID)
	ctx = logger.WithReference(ctx, reference)
	log = log.With(zap.String("reference", reference))

	resp, err := callGateway(s, "initialize", func() (*InitializeResponse, error) {
		return s.gateway.InitializePayment(ctx, InitializeRequest{
			Email:       in.Email,
			AmountMinor: amountMinor,
			Currency:    s.currency,
			Reference:   reference,
			CallbackURL: s.callback,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			Phone:       in.Phone,
			Metadata:    providerMetadata(in),
		})
	})
	if err != nil {
		log.Error("payment initialization failed", zap.Error(err))
		return nil, err
	}

	tx := &Transaction{
		Reference:        reference,
		PaymentType:      in.PaymentType,
		EntityID:         in.EntityID,
		UserID:           in.UserID,
		AmountMajor:      in.AmountMajor,
		AmountMinor:      amountMinor,
		Currency:         s.currency,
		Provider:         s.gateway.Name(),
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		CustomerEmail:    in.Email,
		CustomerName:     joinName(in.FirstName, in.LastName),
		CustomerPhone:    in.Phone,
		Metadata:         in.Metadata,
		Status:           StatusPending,
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		log.Error("failed to persist payment transaction", zap.Error(err))
		return nil, err
	}

	s.metrics.SessionCreated(string(in.PaymentType), s.gateway.Name())
	log.Info("payment session created", zap.Int64("amount_minor", amountMinor))

	return &Session{
		Reference:        reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		AmountMinor:      amountMinor,
		Currency:         s.currency,
		Provider:         s.gateway.Name(),
	}, nil
}

// VerifyPaymentTransaction resolves the outcome of a payment. A row already in
// success is returned as stored without contacting the provider; failed rows
// are verified again.
func (s *service) VerifyPaymentTransaction(ctx context.Context, reference string) (*Verification, error) {
	ctx = logger.WithReference(ctx, reference)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "VerifyPaymentTransaction"),
	)

	if strings.TrimSpace(reference) == "" {
		return nil, validationError("reference is required")
	}

	tx, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		log.Warn("payment transaction lookup failed", zap.Error(err))
		return nil, err
	}

	if tx.Status.IsTerminal() {
		s.metrics.Verification("cached")
		log.Debug("payment already verified")
		return verificationFromTransaction(tx), nil
	}

	result, err := callGateway(s, "verify", func() (*VerifyResponse, error) {
		return s.gateway.VerifyPayment(ctx, reference)
	})
	if err != nil {
		s.metrics.Verification("error")
		log.Error("provider verification failed", zap.Error(err))
		return nil, err
	}

	status := StatusFailed
	var paidAt *time.Time
	if result.Success {
		status = StatusSuccess
		t := s.now()
		if result.PaidAt != nil {
			t = *result.PaidAt
		}
		paidAt = &t

		if !result.AmountMajor.IsZero() && ToMinor(result.AmountMajor) != tx.AmountMinor {
			log.Warn("provider amount differs from session amount",
				zap.Int64("expected_minor", tx.AmountMinor),
				zap.String("provider_amount", result.AmountMajor.String()),
			)
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateVerification(ctx, reference, status, raw, paidAt)
	if err != nil {
		log.Error("failed to record verification", zap.Error(err))
		return nil, err
	}

	if !changed {
		// another verifier stored success first
		current, err := s.repo.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		s.metrics.Verification("cached")
		return verificationFromTransaction(current), nil
	}

	tx.Status = status
	tx.ProviderResponse = raw
	tx.PaidAt = paidAt

	s.metrics.Verification(string(status))
	log.Info("payment verified", zap.String("status", string(status)))

	return verificationFromTransaction(tx), nil
}

// RefundPayment forwards a refund to the provider. The stored status is left
// as it is.
func (s *service) RefundPayment(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	ctx = logger.WithReference(ctx, req.Reference)
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RefundPayment"),
	)

	if strings.TrimSpace(req.Reference) == "" {
		return nil, validationError("reference is required")
	}
	if req.AmountMinor != nil && *req.AmountMinor <= 0 {
		return nil, validationError("refund amount must be greater than zero")
	}

	tx, err := s.repo.GetByReference(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	req.Currency = tx.Currency
	if req.Currency == "" {
		req.Currency = s.currency
	}

	resp, err := callGateway(s, "refund", func() (*RefundResponse, error) {
		return s.gateway.RefundPayment(ctx, req)
	})
	if err != nil {
		log.Error("refund failed", zap.Error(err))
		return nil, err
	}

	log.Info("refund requested", zap.String("refunded_amount", resp.RefundedAmount.String()))
	return resp, nil
}

func (s *service) GetPaymentDetails(ctx context.Context, reference string) (json.RawMessage, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, validationError("reference is required")
	}
	if _, err := s.repo.GetByReference(ctx, reference); err != nil {
		return nil, err
	}

	return callGateway(s, "details", func() (json.RawMessage, error) {
		return s.gateway.GetPaymentDetails(ctx, reference)
	})
}

func (s *service) GetPaymentByReference(ctx context.Context, reference string) (*Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, validationError("reference is required")
	}
	return s.repo.GetByReference(ctx, reference)
}

func (s *service) GetPaymentsByEntity(ctx context.Context, paymentType PaymentType, entityID uint) ([]*Transaction, error) {
	if !paymentType.IsValid() {
		return nil, validationError("unknown payment type %q", paymentType)
	}
	if entityID == 0 {
		return nil, validationError("entity id is required")
	}
	return s.repo.ListByEntity(ctx, paymentType, entityID)
}

func (s *service) GetUserPayments(ctx context.Context, userID uint) ([]*Transaction, error) {
	if userID == 0 {
		return nil, validationError("user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// callGateway times one adapter call and records it.
func callGateway[T any](s *service, op string, fn func() (T, error)) (T, error) {
	timer := metrics.StartTimer()
	out, err := fn()
	s.metrics.ProviderCall(s.gateway.Name(), op, err, timer.Duration())
	return out, err
}

func validateSessionInput(in CreateSessionInput) (int64, error) {
	if !in.PaymentType.IsValid() {
		return 0, validationError("unknown payment type %q", in.PaymentType)
	}
	if in.EntityID == 0 {
		return 0, validationError("entity id is required")
	}
	if in.UserID == 0 {
		return 0, validationError("user id is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return 0, validationError("email is required")
	}
	if !in.AmountMajor.GreaterThan(decimal.Zero) {
		return 0, validationError("amount must be greater than zero")
	}
	if in.AmountMajor.GreaterThanOrEqual(MaxAmountMajor) {
		return 0, validationError("amount must be less than %s", MaxAmountMajor)
	}

	minor := ToMinor(in.AmountMajor)
	if minor <= 0 {
		return 0, validationError("amount %s is below the smallest currency unit", in.AmountMajor)
	}
	return minor, nil
}

// providerMetadata is what the provider echoes back on verification; it
// carries enough to identify the entity without the local row.
func providerMetadata(in CreateSessionInput) map[string]interface{} {
	m := make(map[string]interface{}, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		m[k] = v
	}
	m["paymentType"] = string(in.PaymentType)
	m["entityId"] = in.EntityID
	m["userId"] = in.UserID
	return m
}
