package store

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

var initSQL = map[string][]string{
	"sqlite3": {`
PRAGMA journal_mode = WAL`, `
CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT NOT NULL,
	topic TEXT NOT NULL,
	callback TEXT NOT NULL,
	secret TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	lease_seconds INTEGER NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	verified_at TIMESTAMP NOT NULL,

	PRIMARY KEY(topic, callback)
)`, `
CREATE INDEX IF NOT EXISTS subscriptions_expires_at ON subscriptions(expires_at)`,
	},
	"postgres": {`
CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT NOT NULL,
	topic TEXT NOT NULL,
	callback TEXT NOT NULL,
	secret TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	lease_seconds BIGINT NOT NULL,
	expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	verified_at TIMESTAMP WITH TIME ZONE NOT NULL,

	PRIMARY KEY(topic, callback)
)`, `
CREATE INDEX IF NOT EXISTS subscriptions_expires_at ON subscriptions(expires_at)`,
	},
}

const (
	columns = `id, topic, callback, secret, mode, status, lease_seconds, expires_at, created_at, verified_at`

	upsertSubscription = `
INSERT INTO subscriptions(` + columns + `)
	VALUES(:id, :topic, :callback, :secret, :mode, :status, :lease_seconds, :expires_at, :created_at, :verified_at)
ON CONFLICT(topic, callback) DO UPDATE SET
	secret = excluded.secret, mode = excluded.mode, status = excluded.status,
	lease_seconds = excluded.lease_seconds, expires_at = excluded.expires_at,
	verified_at = excluded.verified_at`
	deleteSubscription = `DELETE FROM subscriptions WHERE topic = ? AND callback = ?`
	getSubscription    = `SELECT ` + columns + ` FROM subscriptions WHERE topic = ? AND callback = ?`
	listActiveByTopic  = `
SELECT ` + columns + ` FROM subscriptions
	WHERE topic = ? AND status = ? AND mode = ? AND expires_at > ?
	ORDER BY callback`
	listAll       = `SELECT ` + columns + ` FROM subscriptions ORDER BY topic, callback`
	listByTopic   = `SELECT ` + columns + ` FROM subscriptions WHERE topic = ? ORDER BY callback`
	deleteExpired = `DELETE FROM subscriptions WHERE expires_at <= ?`
)

// SQL implements subscription.Store on top of sqlx. Both sqlite3 and postgres are
// supported; single-row upserts rely on ON CONFLICT, which both engines implement.
type SQL struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// OpenSQL connects to the database and creates the schema when missing
func OpenSQL(driver, connect string, log logrus.FieldLogger) (*SQL, error) {
	stmts, ok := initSQL[driver]
	if !ok {
		return nil, errors.Errorf("no schema provided for driver '%s'", driver)
	}

	if u, err := url.Parse(connect); err == nil && u.Scheme == "file" {
		if dir := filepath.Dir(u.Opaque); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, errors.Wrapf(err, "creating db directory %s", dir)
			}
		}
	}

	db, err := sqlx.Connect(driver, connect)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s database", driver)
	}

	if driver == "sqlite3" {
		// A single connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "executing '%s'", stmt)
		}
	}

	log.WithField("driver", driver).Info("Subscription store initialized")

	return &SQL{db: db, log: log}, nil
}

// Upsert inserts or replaces the record for sub.Key(), keeping the stored id and created_at
func (s *SQL) Upsert(ctx context.Context, sub subscription.Subscription) error {
	if sub.Topic == "" || sub.Callback == "" {
		return ErrEmptyKey
	}

	if _, err := s.db.NamedExecContext(ctx, upsertSubscription, normalize(sub)); err != nil {
		return errors.Wrapf(err, "upserting subscription %s", sub.Key())
	}
	return nil
}

// Delete removes the record for key
func (s *SQL) Delete(ctx context.Context, key subscription.Key) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(deleteSubscription), key.Topic, key.Callback); err != nil {
		return errors.Wrapf(err, "deleting subscription %s", key)
	}
	return nil
}

// Get returns the record for key
func (s *SQL) Get(ctx context.Context, key subscription.Key) (subscription.Subscription, error) {
	var sub subscription.Subscription
	err := s.db.GetContext(ctx, &sub, s.db.Rebind(getSubscription), key.Topic, key.Callback)
	if err == sql.ErrNoRows {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	if err != nil {
		return subscription.Subscription{}, errors.Wrapf(err, "getting subscription %s", key)
	}
	return sub, nil
}

// ListActiveByTopic returns the distribution targets for topic at now
func (s *SQL) ListActiveByTopic(ctx context.Context, topic string, now time.Time) ([]subscription.Subscription, error) {
	var subs []subscription.Subscription
	err := s.db.SelectContext(ctx, &subs, s.db.Rebind(listActiveByTopic),
		topic, subscription.StatusVerified, subscription.ModeSubscribe, now.UTC())
	if err != nil {
		return nil, errors.Wrapf(err, "listing active subscriptions for %s", topic)
	}
	return subs, nil
}

// List returns all records, or the records of one topic
func (s *SQL) List(ctx context.Context, topic string) ([]subscription.Subscription, error) {
	var subs []subscription.Subscription
	var err error
	if topic == "" {
		err = s.db.SelectContext(ctx, &subs, listAll)
	} else {
		err = s.db.SelectContext(ctx, &subs, s.db.Rebind(listByTopic), topic)
	}
	if err != nil {
		return nil, errors.Wrap(err, "listing subscriptions")
	}
	return subs, nil
}

// DeleteExpired removes records whose lease ended at or before now
func (s *SQL) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(deleteExpired), now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired subscriptions")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting expired subscriptions")
	}
	return int(n), nil
}

// Ping checks the database connection
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQL) Close() error {
	return s.db.Close()
}

// normalize stores all timestamps in UTC so that sqlite text comparisons stay ordered
func normalize(sub subscription.Subscription) subscription.Subscription {
	sub.ExpiresAt = sub.ExpiresAt.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.VerifiedAt = sub.VerifiedAt.UTC()
	return sub
}
