// Package audit keeps a trail of the mutations operators perform through the
// console. Entries go to Postgres when a pool is configured, otherwise to the
// structured log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIncompleteEntry is returned for entries lacking action, entity or entity id.
var ErrIncompleteEntry = errors.New("audit: entry requires action/entity/entity_id")

// Entry is one recorded console action.
type Entry struct {
	ActorID  int64
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (e Entry) validate() error {
	if e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return ErrIncompleteEntry
	}
	return nil
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS console_audit_logs (
	id BIGSERIAL PRIMARY KEY,
	actor_id BIGINT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	meta JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertSQL = `INSERT INTO console_audit_logs (actor_id, actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// EnsureSchema creates the audit table when missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}

// PGRecorder writes entries into console_audit_logs.
type PGRecorder struct {
	db  Execer
	now func() time.Time
}

// NewPGRecorder returns a Postgres backed recorder.
func NewPGRecorder(db Execer) *PGRecorder {
	return &PGRecorder{db: db, now: time.Now}
}

// Record implements Recorder.
func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit recorder not initialised")
	}
	if err := entry.validate(); err != nil {
		return err
	}
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = r.now()
	}
	_, err = r.db.Exec(ctx, insertSQL, entry.ActorID, entry.Actor, entry.Action, entry.Entity, entry.EntityID, metaJSON, at.UTC())
	return err
}

// LogRecorder writes entries to a slog logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder returns a recorder logging at info level.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "audit",
		slog.Int64("actor_id", entry.ActorID),
		slog.String("actor", entry.Actor),
		slog.String("action", entry.Action),
		slog.String("entity", entry.Entity),
		slog.String("entity_id", entry.EntityID),
		slog.Any("meta", entry.Meta))
	return nil
}

// ActorFunc resolves the operator behind ctx.
type ActorFunc func(ctx context.Context) (id int64, name string)

// Trail stamps entries with the current operator and records them. Failures
// are logged and never surface to the caller.
type Trail struct {
	recorder Recorder
	actor    ActorFunc
	logger   *slog.Logger
}

// NewTrail constructs a Trail.
func NewTrail(recorder Recorder, actor ActorFunc, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{recorder: recorder, actor: actor, logger: logger}
}

// Log records action on entity/entityID.
func (t *Trail) Log(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if t == nil || t.recorder == nil {
		return
	}
	entry := Entry{Action: action, Entity: entity, EntityID: entityID, Meta: meta}
	if t.actor != nil {
		entry.ActorID, entry.Actor = t.actor(ctx)
	}
	if err := t.recorder.Record(ctx, entry); err != nil {
		t.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
