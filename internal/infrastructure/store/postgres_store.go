package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/shop-analytics/internal/readmodel"
)

// PostgresStore implements AnalyticsStore on PostgreSQL. Counter
// updates are single atomic upserts clamped at zero, so concurrent
// decrements cannot materialize a negative counter.
type PostgresStore struct {
	db *sql.DB
}

// ConnectPostgres opens and pings a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the projection tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_analytics (
		user_id      TEXT PRIMARY KEY,
		last_visited TIMESTAMPTZ NOT NULL,
		actions      JSONB NOT NULL DEFAULT '[]',
		country      TEXT,
		city         TEXT,
		device       TEXT
	);
	CREATE TABLE IF NOT EXISTS product_analytics (
		product_id     TEXT PRIMARY KEY,
		shop_id        TEXT,
		views          BIGINT NOT NULL DEFAULT 0,
		cart_adds      BIGINT NOT NULL DEFAULT 0,
		wish_list_adds BIGINT NOT NULL DEFAULT 0,
		purchases      BIGINT NOT NULL DEFAULT 0,
		last_viewed_at TIMESTAMPTZ NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) FindUserActions(ctx context.Context, userID string) ([]readmodel.UserAction, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT actions FROM user_analytics WHERE user_id = $1`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user actions: %w", err)
	}

	var actions []readmodel.UserAction
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, false, fmt.Errorf("failed to decode user actions: %w", err)
	}
	return actions, true, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, up UserUpsert) error {
	actions, err := json.Marshal(up.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode user actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_analytics (user_id, last_visited, actions, country, city, device)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (user_id) DO UPDATE SET
			last_visited = EXCLUDED.last_visited,
			actions      = EXCLUDED.actions,
			country      = COALESCE(EXCLUDED.country, user_analytics.country),
			city         = COALESCE(EXCLUDED.city, user_analytics.city),
			device       = COALESCE(EXCLUDED.device, user_analytics.device)`,
		up.UserID, up.LastVisited, actions, up.Country, up.City, up.Device)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", up.UserID, err)
	}
	return nil
}

func (s *PostgresStore) UpsertProductCounters(ctx context.Context, up ProductUpsert) error {
	// shop_id is set on creation only, never overwritten.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_analytics
			(product_id, shop_id, views, cart_adds, wish_list_adds, purchases, last_viewed_at)
		VALUES ($1, NULLIF($2, ''), GREATEST(0, $3), GREATEST(0, $4), GREATEST(0, $5), GREATEST(0, $6), $7)
		ON CONFLICT (product_id) DO UPDATE SET
			views          = GREATEST(0, product_analytics.views + $3),
			cart_adds      = GREATEST(0, product_analytics.cart_adds + $4),
			wish_list_adds = GREATEST(0, product_analytics.wish_list_adds + $5),
			purchases      = GREATEST(0, product_analytics.purchases + $6),
			last_viewed_at = $7`,
		up.ProductID, up.ShopID, up.ViewsDelta, up.CartDelta, up.WishDelta, up.BuyDelta, up.LastViewedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", up.ProductID, err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*readmodel.UserAnalytics, bool, error) {
	var (
		u       readmodel.UserAnalytics
		raw     []byte
		country sql.NullString
		city    sql.NullString
		device  sql.NullString
		visited time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, last_visited, actions, country, city, device
		FROM user_analytics WHERE user_id = $1`, userID).
		Scan(&u.UserID, &visited, &raw, &country, &city, &device)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	u.LastVisited = visited
	u.Country = country.String
	u.City = city.String
	u.Device = device.String
	if err := json.Unmarshal(raw, &u.Actions); err != nil {
		return nil, false, fmt.Errorf("failed to decode user actions: %w", err)
	}
	return &u, true, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, productID string) (*readmodel.ProductAnalytics, bool, error) {
	var (
		p      readmodel.ProductAnalytics
		shopID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, shop_id, views, cart_adds, wish_list_adds, purchases, last_viewed_at
		FROM product_analytics WHERE product_id = $1`, productID).
		Scan(&p.ProductID, &shopID, &p.Views, &p.CartAdds, &p.WishListAdds, &p.Purchases, &p.LastViewedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load product %s: %w", productID, err)
	}
	p.ShopID = shopID.String
	return &p, true, nil
}
