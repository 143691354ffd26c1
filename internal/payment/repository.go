package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository persists payment_transactions. The (payment_type, entity_id)
// pair is polymorphic: no foreign key backs it.
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	ListByEntity(ctx context.Context, paymentType PaymentType, entityID uint) ([]*Transaction, error)
	ListByUser(ctx context.Context, userID uint) ([]*Transaction, error)
	// UpdateVerification records a verification outcome unless the row is
	// already successful. It reports whether a row was changed.
	UpdateVerification(
		ctx context.Context,
		reference string,
		status Status,
		providerResponse json.RawMessage,
		paidAt *time.Time,
	) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const selectTransaction = `
	SELECT id, reference, payment_type, entity_id, user_id, amount, amount_minor,
		currency, status, payment_provider, authorization_url, access_code,
		customer_email, customer_name, customer_phone, metadata, provider_response,
		paid_at, created_at, updated_at
	FROM payment_transactions`

func (r *repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	const q = `
	INSERT INTO payment_transactions (
		reference,
		payment_type,
		entity_id,
		user_id,
		amount,
		amount_minor,
		currency,
		status,
		payment_provider,
		authorization_url,
		access_code,
		customer_email,
		customer_name,
		customer_phone,
		metadata
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id, created_at, updated_at;
	`

	metadata, err := marshalJSON(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = r.db.QueryRowContext(ctx, q,
		tx.Reference,
		string(tx.PaymentType),
		tx.EntityID,
		tx.UserID,
		tx.AmountMajor,
		tx.AmountMinor,
		tx.Currency,
		string(tx.Status),
		tx.Provider,
		nullString(tx.AuthorizationURL),
		nullString(tx.AccessCode),
		tx.CustomerEmail,
		nullString(tx.CustomerName),
		nullString(tx.CustomerPhone),
		metadata,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrConflict, tx.Reference)
		}
		return err
	}

	return nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE reference = $1`, reference)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return nil, err
	}
	return tx, nil
}

func (r *repository) ListByEntity(ctx context.Context, paymentType PaymentType, entityID uint) ([]*Transaction, error) {
	return r.list(ctx,
		selectTransaction+` WHERE payment_type = $1 AND entity_id = $2 ORDER BY created_at DESC, id DESC`,
		string(paymentType), entityID,
	)
}

func (r *repository) ListByUser(ctx context.Context, userID uint) ([]*Transaction, error) {
	return r.list(ctx,
		selectTransaction+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

func (r *repository) UpdateVerification(
	ctx context.Context,
	reference string,
	status Status,
	providerResponse json.RawMessage,
	paidAt *time.Time,
) (bool, error) {

	const q = `
	UPDATE payment_transactions
	SET status = $2,
		provider_response = $3,
		paid_at = $4,
		updated_at = now()
	WHERE reference = $1
		AND status <> 'success';
	`

	var paid sql.NullTime
	if paidAt != nil {
		paid = sql.NullTime{Time: *paidAt, Valid: true}
	}

	var resp interface{}
	if len(providerResponse) > 0 {
		resp = []byte(providerResponse)
	}

	res, err := r.db.ExecContext(ctx, q, reference, string(status), resp, paid)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) list(ctx context.Context, query string, args ...interface{}) ([]*Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]*Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx               Transaction
		paymentType      string
		status           string
		authorizationURL sql.NullString
		accessCode       sql.NullString
		customerName     sql.NullString
		customerPhone    sql.NullString
		metadata         []byte
		providerResponse []byte
		paidAt           sql.NullTime
	)

	err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&paymentType,
		&tx.EntityID,
		&tx.UserID,
		&tx.AmountMajor,
		&tx.AmountMinor,
		&tx.Currency,
		&status,
		&tx.Provider,
		&authorizationURL,
		&accessCode,
		&tx.CustomerEmail,
		&customerName,
		&customerPhone,
		&metadata,
		&providerResponse,
		&paidAt,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.PaymentType = PaymentType(paymentType)
	tx.Status = Status(status)
	tx.AuthorizationURL = authorizationURL.String
	tx.AccessCode = accessCode.String
	tx.CustomerName = customerName.String
	tx.CustomerPhone = customerPhone.String

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", tx.Reference, err)
		}
	}
	if len(providerResponse) > 0 {
		tx.ProviderResponse = json.RawMessage(providerResponse)
	}
	if paidAt.Valid {
		t := paidAt.Time
		tx.PaidAt = &t
	}

	return &tx, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalJSON(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}
