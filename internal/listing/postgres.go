package listing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.trai.ch/zerr"
)

// Rows is the subset of pgx.Rows the source reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Querier runs a query. *pgxpool.Pool satisfies it through PoolQuerier.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// PoolQuerier adapts a pgx pool to Querier.
type PoolQuerier struct {
	pool *pgxpool.Pool
}

func (q PoolQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return q.pool.Query(ctx, sql, args...)
}

const selectListings = `
	SELECT id, make, model, variant, year, price, mileage, fuel, transmission,
	       body, color, location, description, status, featured, images
	FROM listings
	WHERE status <> 'hidden'
	ORDER BY featured DESC, created_at DESC, id`

// PostgresSource reads listings from the listings table.
type PostgresSource struct {
	q         Querier
	closeOnce sync.Once
	close     func()
}

// NewPostgresSource reads through q. Close is a no-op.
func NewPostgresSource(q Querier) *PostgresSource {
	return &PostgresSource{q: q, close: func() {}}
}

// ConnectPostgres opens a pool on dsn and checks it with a ping.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, zerr.Wrap(err, ErrSource.Error())
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, zerr.Wrap(err, ErrSource.Error())
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, zerr.Wrap(err, ErrSource.Error())
	}

	return &PostgresSource{q: PoolQuerier{pool: pool}, close: pool.Close}, nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]Listing, error) {
	rows, err := s.q.Query(ctx, selectListings)
	if err != nil {
		return nil, zerr.Wrap(err, ErrSource.Error())
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var (
			l                   Listing
			variant, desc, body *string
			images              []string
		)
		if err := rows.Scan(
			&l.ID, &l.Make, &l.Model, &variant, &l.Year, &l.Price, &l.Mileage, &l.Fuel, &l.Transmission,
			&body, &l.Color, &l.Location, &desc, &l.Status, &l.Featured, &images,
		); err != nil {
			return nil, zerr.Wrap(err, ErrSource.Error())
		}
		l.Variant = deref(variant)
		l.Body = deref(body)
		l.Description = deref(desc)
		l.Images = images
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, ErrSource.Error())
	}
	if err := check(out); err != nil {
		return nil, err
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Close releases the pool. It is safe to call more than once.
func (s *PostgresSource) Close() {
	s.closeOnce.Do(s.close)
}
