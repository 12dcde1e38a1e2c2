package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresStore implements Store on postgres. The atomic unit is a single
// SQL transaction; product rows read through GetProductForUpdate are locked
// with SELECT ... FOR UPDATE, so concurrent checkouts targeting the same
// product serialize on the row lock. Serialization failures reported by the
// server are mapped to ErrTxConflict for the retry loop.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cred *Credentials) (*PostgresStore, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (s *PostgresStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return mapTxError(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// mapTxError converts postgres serialization and deadlock failures into the
// retryable ErrTxConflict. Everything else passes through unchanged.
func mapTxError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return ErrTxConflict
		}
	}
	return err
}

func (t *pgTx) GetProductForUpdate(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT id, name, price, stock, images FROM products WHERE id = $1 FOR UPDATE`

	var product domain.Product
	var imagesJSON []byte
	err := t.tx.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&imagesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product for update: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &product.Images); err != nil {
		return nil, fmt.Errorf("unmarshal product images: %w", err)
	}
	return &product, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	// The stock >= quantity guard backs the check constraint: this statement
	// can never drive stock negative, no matter what the caller validated.
	query := `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	res, err := t.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *pgTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	customerJSON, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	historyJSON, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	query := `INSERT INTO orders
	          (id, user_id, staff_order, customer, items, amount, currency, exchange_rate,
	           payment_method, payment_status, payment_reference, status, status_history, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = t.tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.StaffOrder,
		customerJSON,
		itemsJSON,
		order.Amount,
		order.Currency,
		order.ExchangeRate,
		order.PaymentMethod,
		order.PaymentStatus,
		order.PaymentReference,
		order.Status,
		historyJSON,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, event *OutboxEvent) error {
	return insertEvent(ctx, t.tx, event)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, event *OutboxEvent) error {
	query := `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := db.ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT id, name, price, stock, images FROM products WHERE id = $1`

	var product domain.Product
	var imagesJSON []byte
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&imagesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &product.Images); err != nil {
		return nil, fmt.Errorf("unmarshal product images: %w", err)
	}
	return &product, nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, product *domain.Product) error {
	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}

	query := `INSERT INTO products (id, name, price, stock, images)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (id) DO UPDATE
	          SET name = $2, price = $3, stock = $4, images = $5`

	if _, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Price, product.Stock, imagesJSON); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, staff_order, customer, items, amount, currency, exchange_rate,
	payment_method, payment_status, payment_reference, status, status_history, created_at`

func (s *PostgresStore) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var customerJSON, itemsJSON, historyJSON []byte
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.StaffOrder,
		&customerJSON,
		&itemsJSON,
		&order.Amount,
		&order.Currency,
		&order.ExchangeRate,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.PaymentReference,
		&order.Status,
		&historyJSON,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customerJSON, &order.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &order.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history: %w", err)
	}
	return &order, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, change domain.StatusChange, event *OutboxEvent) (domain.OrderStatus, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	var previous domain.OrderStatus
	err = sqlTx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query order status: %w", err)
	}

	changeJSON, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("marshal status change: %w", err)
	}

	// history is append-only: prior entries are never touched
	_, err = sqlTx.ExecContext(ctx,
		`UPDATE orders SET status = $2, status_history = status_history || $3::jsonb WHERE id = $1`,
		orderID, change.Status, changeJSON)
	if err != nil {
		return "", fmt.Errorf("update order status: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, sqlTx, event); err != nil {
			return "", err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return "", fmt.Errorf("commit status update: %w", err)
	}
	return previous, nil
}

func (s *PostgresStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at, processed_at
	          FROM outbox_events WHERE processed_at IS NULL
	          ORDER BY created_at ASC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.EventType,
			&event.Payload,
			&event.CreatedAt,
			&event.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkEventAsProcessed(ctx context.Context, eventID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event as processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
