package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/order"
)

// OrderUpdate carries admin-supplied partial order fields. Nil pointers
// leave the column untouched.
type OrderUpdate struct {
	Status        *order.Status
	PaymentStatus *order.PaymentStatus
	Notes         *string
}

// OrderFilter narrows List results.
type OrderFilter struct {
	Status order.Status
	// UserID/Email restrict results to one customer's orders. Both are
	// checked because guest orders carry only an email.
	UserID string
	Email  string
	Limit  int
}

// OrderStore is the persistence contract for orders. Orders are created
// exclusively by webhook reconciliation and never deleted.
type OrderStore interface {
	// Create inserts a new order. It returns false when an order with the
	// same provider correlation id already exists (idempotent no-op).
	Create(ctx context.Context, o *order.Order) (bool, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*order.Order, error)
	GetBySquareOrderID(ctx context.Context, squareOrderID string) (*order.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*order.Order, error)
	UpdateFields(ctx context.Context, id string, upd OrderUpdate) (*order.Order, error)
	// AssignTracking sets the tracking number (and label, when purchased
	// through a carrier). It reports whether this was the first assignment,
	// which is the notification trigger. When status is nil and this is the
	// first assignment the order auto-advances to shipped.
	AssignTracking(ctx context.Context, id, trackingNumber string, status *order.Status, label *order.Label) (*order.Order, bool, error)
	// ApplyInventory decrements product inventory for the order's items,
	// exactly once per order.
	ApplyInventory(ctx context.Context, id string) (bool, error)
}

// PostgresOrderStore implements OrderStore on PostgreSQL.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `id, user_id, email, items, shipping_address,
	subtotal, shipping_cost, tax, total,
	stripe_session_id, stripe_payment_intent_id, square_order_id, square_payment_link_id,
	payment_status, status, tracking_number, shipping_label, inventory_applied, notes,
	created_at, updated_at`

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) (bool, error) {
	if err := o.Validate(); err != nil {
		return false, err
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return false, err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return false, err
	}
	var label []byte
	if o.ShippingLabel != nil {
		if label, err = json.Marshal(o.ShippingLabel); err != nil {
			return false, err
		}
	}

	// ON CONFLICT DO NOTHING turns a unique-index violation on a provider
	// correlation id into the dedup signal.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, email, items, shipping_address,
			subtotal, shipping_cost, tax, total,
			stripe_session_id, stripe_payment_intent_id, square_order_id, square_payment_link_id,
			payment_status, status, tracking_number, shipping_label, inventory_applied, notes,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT DO NOTHING`,
		o.ID, o.UserID, o.Email, items, address,
		o.Subtotal, o.ShippingCost, o.Tax, o.Total,
		o.StripeSessionID, o.StripePaymentIntentID, o.SquareOrderID, o.SquarePaymentLinkID,
		o.PaymentStatus, o.Status, o.TrackingNumber, nullableJSON(label), o.InventoryApplied, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *PostgresOrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresOrderStore) GetByStripeSessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE stripe_session_id = $1 AND stripe_session_id <> ''`, sessionID)
	return scanOrder(row)
}

func (s *PostgresOrderStore) GetBySquareOrderID(ctx context.Context, squareOrderID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE square_order_id = $1 AND square_order_id <> ''`, squareOrderID)
	return scanOrder(row)
}

func (s *PostgresOrderStore) List(ctx context.Context, filter OrderFilter) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.UserID != "" || filter.Email != "" {
		args = append(args, filter.UserID, filter.Email)
		query += fmt.Sprintf(" AND (user_id = $%d OR email = $%d)", len(args)-1, len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresOrderStore) UpdateFields(ctx context.Context, id string, upd OrderUpdate) (*order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if upd.Status != nil && *upd.Status != o.Status {
		if !o.CanTransitionTo(*upd.Status) {
			return nil, o.TransitionError(*upd.Status)
		}
		o.Status = *upd.Status
	}
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	o.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, notes = $4, updated_at = $5 WHERE id = $1`,
		o.ID, o.Status, o.PaymentStatus, o.Notes, o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresOrderStore) AssignTracking(ctx context.Context, id, trackingNumber string, status *order.Status, label *order.Label) (*order.Order, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, false, err
	}

	first := o.TrackingNumber == ""

	newStatus := o.Status
	switch {
	case status != nil:
		newStatus = *status
	case first:
		newStatus = order.StatusShipped
	}
	if newStatus != o.Status {
		if !o.CanTransitionTo(newStatus) {
			return nil, false, o.TransitionError(newStatus)
		}
		o.Status = newStatus
	}

	o.TrackingNumber = trackingNumber
	if label != nil {
		o.ShippingLabel = label
	}
	o.UpdatedAt = time.Now()

	var labelJSON []byte
	if o.ShippingLabel != nil {
		if labelJSON, err = json.Marshal(o.ShippingLabel); err != nil {
			return nil, false, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET tracking_number = $2, status = $3, shipping_label = $4, updated_at = $5 WHERE id = $1`,
		o.ID, o.TrackingNumber, o.Status, nullableJSON(labelJSON), o.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return o, first, nil
}

func (s *PostgresOrderStore) ApplyInventory(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var itemsJSON []byte
	var applied bool
	err = tx.QueryRowContext(ctx,
		`SELECT items, inventory_applied FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&itemsJSON, &applied)
	if errors.Is(err, sql.ErrNoRows) {
		return false, order.ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}

	var items []order.Item
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return false, err
	}

	for _, item := range items {
		if item.Kind != order.KindProduct && item.Kind != "" {
			continue
		}
		// GREATEST guards the non-negative inventory constraint when the
		// catalog undersold.
		_, err = tx.ExecContext(ctx,
			`UPDATE products SET inventory = GREATEST(inventory - $2, 0), updated_at = now() WHERE id = $1`,
			item.ProductID, item.Quantity)
		if err != nil {
			return false, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET inventory_applied = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var items, address []byte
	var label sql.NullString

	err := row.Scan(&o.ID, &o.UserID, &o.Email, &items, &address,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total,
		&o.StripeSessionID, &o.StripePaymentIntentID, &o.SquareOrderID, &o.SquarePaymentLinkID,
		&o.PaymentStatus, &o.Status, &o.TrackingNumber, &label, &o.InventoryApplied, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if label.Valid && label.String != "" {
		var l order.Label
		if err := json.Unmarshal([]byte(label.String), &l); err != nil {
			return nil, err
		}
		o.ShippingLabel = &l
	}
	return &o, nil
}

// nullableJSON maps empty marshal output to SQL NULL for optional JSONB
// columns.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
