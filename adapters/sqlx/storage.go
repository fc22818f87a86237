package sqlx

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tilequest/claims"
)

//go:embed migrations
var embedMigrations embed.FS

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"TILEQUEST_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" env:"TILEQUEST_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"TILEQUEST_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"TILEQUEST_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"TILEQUEST_SQL_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool          `json:"migrate_on_start" yaml:"migrate_on_start" env:"TILEQUEST_SQL_MIGRATE"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		MigrateOnStart:  true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/tilequest?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/tilequest?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "./data/claims.db"
		cfg.MaxOpenConns = 1
	}
	return cfg
}

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(string(DriverSQLite), sqlx.QUESTION)
}

// Store implements claims.Repository over database/sql via sqlx.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New connects, applies pool settings and optionally runs migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	dsn := cfg.DSN
	if cfg.Driver == DriverMySQL {
		// timestamps must scan into time.Time
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	dialect := string(s.driver)
	if s.driver == DriverSQLite {
		dialect = "sqlite3"
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations/"+string(s.driver)); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

const addressColumns = `id, wallet_address, nft_level, nft_name, user_agent, ip_address, session_id, submitted_at, created_at`

const insertAddress = `INSERT INTO addresses (wallet_address, nft_level, nft_name, user_agent, ip_address, session_id, submitted_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Insert stores a and sets its id. A (wallet, level) conflict yields claims.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, a *claims.Address) error {
	args := []any{a.WalletAddress, a.NFTLevel, a.NFTName, a.UserAgent, a.IPAddress, a.SessionID, a.SubmittedAt, a.CreatedAt}

	if s.driver == DriverPostgres {
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(insertAddress+" RETURNING id"), args...).Scan(&a.ID)
		if err != nil {
			return mapInsertError(err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(insertAddress), args...)
	if err != nil {
		return mapInsertError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) Exists(ctx context.Context, wallet string, level int) (bool, error) {
	var exists bool
	q := s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM addresses WHERE wallet_address = ? AND nft_level = ?)`)
	if err := s.db.QueryRowxContext(ctx, q, wallet, level).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check address: %w", err)
	}
	return exists, nil
}

func whereClause(f claims.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Level != 0 {
		conds = append(conds, "nft_level = ?")
		args = append(args, f.Level)
	}
	if f.Address != "" {
		conds = append(conds, "wallet_address = ?")
		args = append(args, f.Address)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of matching rows, newest first, plus the total match count.
func (s *Store) List(ctx context.Context, f claims.ListFilter) ([]claims.Address, int, error) {
	where, args := whereClause(f)

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM addresses`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count addresses: %w", err)
	}

	q := `SELECT ` + addressColumns + ` FROM addresses` + where + ` ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`
	rows := []claims.Address{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list addresses: %w", err)
	}
	return rows, total, nil
}

// Stats runs the aggregate queries concurrently.
func (s *Store) Stats(ctx context.Context, since time.Time) (claims.Stats, error) {
	var st claims.Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var rows []claims.LevelCount
		q := `SELECT nft_level, nft_name, COUNT(*) AS level_count FROM addresses GROUP BY nft_level, nft_name ORDER BY nft_level`
		if err := s.db.SelectContext(gctx, &rows, q); err != nil {
			return fmt.Errorf("level breakdown: %w", err)
		}
		st.LevelBreakdown = rows
		return nil
	})
	g.Go(func() error {
		if err := s.db.GetContext(gctx, &st.UniqueWallets, `SELECT COUNT(DISTINCT wallet_address) FROM addresses`); err != nil {
			return fmt.Errorf("unique wallets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		q := s.db.Rebind(`SELECT COUNT(*) FROM addresses WHERE submitted_at >= ?`)
		if err := s.db.GetContext(gctx, &st.RecentSubmissions, q, since); err != nil {
			return fmt.Errorf("recent submissions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return claims.Stats{}, err
	}
	for _, lc := range st.LevelBreakdown {
		st.TotalAddresses += lc.Count
	}
	return st, nil
}

// mapInsertError translates unique violations from each driver into claims.ErrDuplicate.
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return claims.ErrDuplicate
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return claims.ErrDuplicate
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return claims.ErrDuplicate
	}
	return fmt.Errorf("failed to insert address: %w", err)
}

var _ claims.Repository = (*Store)(nil)
