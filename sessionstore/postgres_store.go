package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kokio-labs/esimpay/types"
)

// PostgresStore persists sessions in a PostgreSQL table, keyed by device
// wallet.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS provisioning_sessions (
    device_wallet TEXT PRIMARY KEY,
    esim_wallet TEXT NOT NULL DEFAULT '',
    bundle_id TEXT NOT NULL,
    bundle_price_usd NUMERIC NOT NULL,
    state TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, deviceWallet string) (*types.ProvisioningSession, error) {
	const query = `
SELECT device_wallet, esim_wallet, bundle_id, bundle_price_usd::text, state, updated_at
FROM provisioning_sessions
WHERE device_wallet = $1
`
	var (
		session  types.ProvisioningSession
		priceStr string
		state    string
		updated  time.Time
	)
	err := p.pool.QueryRow(ctx, query, deviceWallet).Scan(
		&session.DeviceWallet,
		&session.ESIMWallet,
		&session.BundleID,
		&priceStr,
		&state,
		&updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, err
	}
	session.BundlePriceUSD = price
	session.State = types.SessionState(state)
	session.UpdatedAt = updated
	return &session, nil
}

func (p *PostgresStore) Save(ctx context.Context, session types.ProvisioningSession) error {
	const query = `
INSERT INTO provisioning_sessions (device_wallet, esim_wallet, bundle_id, bundle_price_usd, state, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (device_wallet) DO UPDATE SET
    esim_wallet = EXCLUDED.esim_wallet,
    bundle_id = EXCLUDED.bundle_id,
    bundle_price_usd = EXCLUDED.bundle_price_usd,
    state = EXCLUDED.state,
    updated_at = EXCLUDED.updated_at
`
	_, err := p.pool.Exec(ctx, query,
		session.DeviceWallet,
		session.ESIMWallet,
		session.BundleID,
		session.BundlePriceUSD.String(),
		string(session.State),
		session.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}
