package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"tourneykit/core"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"DRIVER"`
	DSN             string        `json:"dsn" env:"DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DefaultConfig returns pool defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	if driver == DriverSQLite {
		cfg.DSN = "file:tourneykit.db"
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Valid reports whether d is a supported driver.
func (d Driver) Valid() bool {
	switch d {
	case DriverPostgres, DriverMySQL, DriverSQLite:
		return true
	}
	return false
}

// Store implements engine.Storage on a relational database.
// Tables:
// - profiles: one row per user with counters, earnings and identity
// - profile_badges: externally granted badges, keyed by (user_id, badge_id)
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and, when configured, creates the schema.
func New(cfg Config) (*Store, error) {
	if !cfg.Driver.Valid() {
		return nil, fmt.Errorf("unsupported sql driver: %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql dsn is required")
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id VARCHAR(191) NOT NULL PRIMARY KEY,
		email VARCHAR(320) NOT NULL DEFAULT '',
		role VARCHAR(32) NOT NULL DEFAULT 'player',
		tournaments_joined BIGINT NOT NULL DEFAULT 0,
		tournaments_won BIGINT NOT NULL DEFAULT 0,
		tournaments_created BIGINT NOT NULL DEFAULT 0,
		total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profile_badges (
		user_id VARCHAR(191) NOT NULL,
		badge_id VARCHAR(191) NOT NULL,
		granted_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, badge_id)
	)`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// statColumns whitelists the counter columns that may be interpolated into SQL.
var statColumns = map[core.Stat]string{
	core.StatTournamentsJoined:  "tournaments_joined",
	core.StatTournamentsWon:     "tournaments_won",
	core.StatTournamentsCreated: "tournaments_created",
}

type profileRow struct {
	UserID             string  `db:"user_id"`
	Email              string  `db:"email"`
	Role               string  `db:"role"`
	TournamentsJoined  int64   `db:"tournaments_joined"`
	TournamentsWon     int64   `db:"tournaments_won"`
	TournamentsCreated int64   `db:"tournaments_created"`
	TotalEarnings      float64 `db:"total_earnings"`
	UpdatedAt          int64   `db:"updated_at"`
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

var errCounterOverflow = errors.New("counter would overflow int64")

// insertIgnore returns the dialect's conflict-free INSERT prefix.
func (s *Store) insertIgnore() string {
	if s.driver == DriverMySQL {
		return "INSERT IGNORE INTO"
	}
	return "INSERT INTO"
}

func (s *Store) onConflictNothing() string {
	if s.driver == DriverMySQL {
		return ""
	}
	return " ON CONFLICT (user_id) DO NOTHING"
}

func (s *Store) GetProfile(ctx context.Context, user core.UserID) (core.Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT user_id, email, role, tournaments_joined, tournaments_won, tournaments_created, total_earnings, updated_at FROM profiles WHERE user_id = ?`), string(user))
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewProfile(user), nil
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	var badges []string
	if err := s.db.SelectContext(ctx, &badges, s.db.Rebind(`SELECT badge_id FROM profile_badges WHERE user_id = ? ORDER BY badge_id`), string(user)); err != nil {
		return core.Profile{}, fmt.Errorf("get badges: %w", err)
	}

	p := core.Profile{
		UserID: user,
		Email:  row.Email,
		Role:   core.Role(row.Role),
		Stats: core.StatRecord{
			TournamentsJoined:  row.TournamentsJoined,
			TournamentsWon:     row.TournamentsWon,
			TournamentsCreated: row.TournamentsCreated,
			TotalEarnings:      row.TotalEarnings,
		},
		Updated: fromMillis(row.UpdatedAt),
	}
	ids := make([]core.BadgeID, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, core.BadgeID(b))
	}
	p.Stats.ExistingBadgeIDs = core.NormalizeBadgeIDs(ids)
	return p, nil
}

// IncrementStat adds delta to a counter in place. The guard in the WHERE
// clause leaves the row untouched when the sum would overflow.
func (s *Store) IncrementStat(ctx context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	col, ok := statColumns[stat]
	if !ok {
		return 0, fmt.Errorf("unknown stat: %s", stat)
	}
	var total int64
	err := s.withTx(ctx, func(tx *sqlx.Tx, now int64) error {
		if err := s.ensureProfile(ctx, tx, user, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE profiles SET `+col+` = `+col+` + ?, updated_at = ? WHERE user_id = ? AND `+col+` <= ?`),
			delta, now, string(user), int64(math.MaxInt64)-delta)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errCounterOverflow
		}
		return tx.GetContext(ctx, &total, tx.Rebind(`SELECT `+col+` FROM profiles WHERE user_id = ?`), string(user))
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", stat, err)
	}
	return total, nil
}

func (s *Store) AddEarnings(ctx context.Context, user core.UserID, amount float64) (float64, error) {
	var total float64
	err := s.withTx(ctx, func(tx *sqlx.Tx, now int64) error {
		if err := s.ensureProfile(ctx, tx, user, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE profiles SET total_earnings = total_earnings + ?, updated_at = ? WHERE user_id = ?`),
			amount, now, string(user)); err != nil {
			return err
		}
		return tx.GetContext(ctx, &total, tx.Rebind(`SELECT total_earnings FROM profiles WHERE user_id = ?`), string(user))
	})
	if err != nil {
		return 0, fmt.Errorf("add earnings: %w", err)
	}
	return total, nil
}

func (s *Store) GrantBadge(ctx context.Context, user core.UserID, badge core.BadgeID) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx, now int64) error {
		if err := s.ensureProfile(ctx, tx, user, now); err != nil {
			return err
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM profile_badges WHERE user_id = ? AND badge_id = ?)`), string(user), string(badge)); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO profile_badges (user_id, badge_id, granted_at) VALUES (?, ?, ?)`), string(user), string(badge), now)
		return err
	})
	if err != nil {
		return fmt.Errorf("grant badge: %w", err)
	}
	return nil
}

func (s *Store) SetRole(ctx context.Context, user core.UserID, role core.Role) error {
	if err := s.setColumn(ctx, user, "role", string(role)); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (s *Store) SetEmail(ctx context.Context, user core.UserID, email string) error {
	if err := s.setColumn(ctx, user, "email", email); err != nil {
		return fmt.Errorf("set email: %w", err)
	}
	return nil
}

// setColumn updates one identity column; col is never user supplied.
func (s *Store) setColumn(ctx context.Context, user core.UserID, col, value string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx, now int64) error {
		if err := s.ensureProfile(ctx, tx, user, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE profiles SET `+col+` = ?, updated_at = ? WHERE user_id = ?`), value, now, string(user))
		return err
	})
}

// ensureProfile creates the row if missing; concurrent first writers do not
// conflict.
func (s *Store) ensureProfile(ctx context.Context, tx *sqlx.Tx, user core.UserID, now int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(s.insertIgnore()+` profiles (user_id, role, updated_at) VALUES (?, ?, ?)`+s.onConflictNothing()),
		string(user), string(core.RolePlayer), now)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx, now int64) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx, toMillis(time.Now())); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
