package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
)

// schema is applied by Migrate. Amounts are stored as NUMERIC in display
// units (18 decimals) next to the full JSON document.
const schema = `
CREATE TABLE IF NOT EXISTS agreements (
	id              TEXT PRIMARY KEY,
	book            TEXT NOT NULL,
	ticker          TEXT NOT NULL,
	status          TEXT NOT NULL,
	strike_price    NUMERIC,
	size            NUMERIC NOT NULL,
	price_at_expiry NUMERIC,
	expiry          TIMESTAMPTZ,
	doc             JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS agreements_book_idx ON agreements (book, created_at);

CREATE TABLE IF NOT EXISTS agreement_events (
	id        UUID PRIMARY KEY,
	seq       BIGSERIAL,
	type      TEXT NOT NULL,
	book      TEXT NOT NULL,
	agreement TEXT NOT NULL,
	actor     TEXT NOT NULL,
	amount    NUMERIC,
	at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS agreement_events_agreement_idx ON agreement_events (agreement, seq);
`

// PostgresStore implements Store using PostgreSQL.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) SaveAgreement(ctx context.Context, md *model.Metadata) error {
	doc, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode agreement %s: %w", md.ID.Hex(), err)
	}
	var expiry any
	if !md.Expiry.IsZero() {
		expiry = md.Expiry
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agreements (id, book, ticker, status, strike_price, size, price_at_expiry, expiry, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		     status = EXCLUDED.status,
		     strike_price = EXCLUDED.strike_price,
		     price_at_expiry = EXCLUDED.price_at_expiry,
		     expiry = EXCLUDED.expiry,
		     doc = EXCLUDED.doc,
		     updated_at = EXCLUDED.updated_at`,
		md.ID.Hex(), md.Book.Hex(), md.Ticker, md.Status(),
		decimalText(md.StrikePrice), fixed.String(md.Size), decimalText(md.PriceAtExpiry),
		expiry, doc, md.CreatedAt, md.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetAgreement(ctx context.Context, id model.Address) (*model.Metadata, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM agreements WHERE id = $1`, id.Hex()).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agreement %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agreement %s: %w", id.Hex(), err)
	}
	var md model.Metadata
	if err := json.Unmarshal(doc, &md); err != nil {
		return nil, fmt.Errorf("decode agreement %s: %w", id.Hex(), err)
	}
	return &md, nil
}

func (s *PostgresStore) ListAgreements(ctx context.Context, book model.Address) ([]model.Metadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM agreements WHERE book = $1 ORDER BY created_at`, book.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Metadata, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var md model.Metadata
		if err := json.Unmarshal(doc, &md); err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *model.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agreement_events (id, type, book, agreement, actor, amount, at)
		 VALUES ($1::UUID, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		e.ID, string(e.Type), e.Book.Hex(), e.Agreement.Hex(), e.Actor.Hex(),
		decimalText(e.Amount), e.At,
	)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context, agreement model.Address) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, type, book, agreement, actor, amount::TEXT, at
		 FROM agreement_events WHERE agreement = $1 ORDER BY seq`, agreement.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e                   model.Event
			typ, bk, agr, actor string
			amount              *string
		)
		if err := rows.Scan(&e.ID, &typ, &bk, &agr, &actor, &amount, &e.At); err != nil {
			return nil, err
		}
		e.Type = model.EventType(typ)
		e.Book = common.HexToAddress(bk)
		e.Agreement = common.HexToAddress(agr)
		e.Actor = common.HexToAddress(actor)
		if amount != nil {
			if e.Amount, err = fixed.Parse(*amount); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// decimalText renders a scaled value for a ::NUMERIC parameter; nil stays NULL.
func decimalText(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := fixed.String(v)
	return &s
}
