package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const notifyChannel = "document_changes"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres stores documents as JSONB rows and runs transactions at
// serializable isolation. Serialization failures and stale version checks
// both surface as ErrConflict.
type Postgres struct {
	db       *sqlx.DB
	connInfo string
}

// NewPostgres connects to the database and ensures the documents table.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure documents table: %w", err)
	}

	return &Postgres{db: db, connInfo: databaseURL}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Get(ctx context.Context, collection, id string, dest interface{}) error {
	var raw []byte
	err := p.db.GetContext(ctx, &raw,
		"SELECT doc FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return err
	}
	return decodeDoc(raw, dest)
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query, dest interface{}) error {
	query := "SELECT doc FROM documents WHERE collection = $1"
	args := []interface{}{collection}

	for _, f := range q.Filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
		args = append(args, fmt.Sprint(f.Value))
		query += fmt.Sprintf(" AND doc->>'%s' = $%d", f.Field, len(args))
	}

	if q.OrderBy != "" {
		if !fieldNamePattern.MatchString(q.OrderBy) {
			return fmt.Errorf("docstore: invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		if q.OrderBy == "createdAt" {
			query += " ORDER BY created_at " + dir
		} else {
			query += fmt.Sprintf(" ORDER BY doc->>'%s' %s", q.OrderBy, dir)
		}
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows [][]byte
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return err
	}

	parts := make([]string, len(rows))
	for i, raw := range rows {
		parts[i] = string(raw)
	}
	return decodeDoc([]byte("["+strings.Join(parts, ",")+"]"), dest)
}

func (p *Postgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	var serverTime time.Time
	if err := sqlTx.GetContext(ctx, &serverTime, "SELECT now()"); err != nil {
		return mapPQError(err)
	}

	tx := &pgTx{ctx: ctx, tx: sqlTx, serverTime: serverTime.UTC()}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapPQError(err)
	}
	return nil
}

type pgTx struct {
	ctx        context.Context
	tx         *sqlx.Tx
	serverTime time.Time
}

func (t *pgTx) ServerTime() time.Time { return t.serverTime }

func (t *pgTx) Get(collection, id string, dest interface{}) error {
	var raw []byte
	err := t.tx.GetContext(t.ctx, &raw,
		"SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE", collection, id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return mapPQError(err)
	}
	return decodeDoc(raw, dest)
}

func (t *pgTx) Create(collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(t.ctx,
		"INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)",
		collection, id, data)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
		}
		return mapPQError(err)
	}
	return t.notify(EventCreated, collection, id, data)
}

func (t *pgTx) Update(collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE documents SET doc = $1, version = version + 1, updated_at = now() WHERE collection = $2 AND id = $3",
		data, collection, id)
	if err != nil {
		return mapPQError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return t.notify(EventUpdated, collection, id, data)
}

func (t *pgTx) Delete(collection, id string) error {
	res, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return mapPQError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return t.notify(EventDeleted, collection, id, nil)
}

type notifyPayload struct {
	Type       EventType       `json:"type"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Doc        json.RawMessage `json:"doc,omitempty"`
}

func (t *pgTx) notify(typ EventType, collection, id string, doc []byte) error {
	payload, err := json.Marshal(notifyPayload{Type: typ, Collection: collection, ID: id, Doc: doc})
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, "SELECT pg_notify($1, $2)", notifyChannel, string(payload))
	return err
}

// Watch delivers committed changes via LISTEN/NOTIFY. Events from other
// collections on the shared channel are filtered out.
func (p *Postgres) Watch(ctx context.Context, collection string, fn func(Event)) (Subscription, error) {
	listener := pq.NewListener(p.connInfo, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	done := make(chan struct{})
	sub := &pgSubscription{listener: listener, done: done}

	go func() {
		for {
			select {
			case <-ctx.Done():
				sub.Cancel()
				return
			case <-done:
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					continue
				}
				var payload notifyPayload
				if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
					continue
				}
				if payload.Collection != collection {
					continue
				}
				fn(Event{Type: payload.Type, Collection: payload.Collection, ID: payload.ID, Doc: payload.Doc})
			}
		}
	}()

	return sub, nil
}

type pgSubscription struct {
	once     sync.Once
	listener *pq.Listener
	done     chan struct{}
}

func (s *pgSubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.listener.Close()
	})
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure / deadlock_detected
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
