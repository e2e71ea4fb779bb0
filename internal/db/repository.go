package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// Repository stores board entities as JSON documents keyed by (kind, id)
// and keeps an append-only change log.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ChangeRecord is one row of the change log.
type ChangeRecord struct {
	Seq      int64               `json:"seq"`
	Kind     board.EntityKind    `json:"kind"`
	EntityID string              `json:"entity_id"`
	BoardID  string              `json:"board_id,omitempty"`
	Op       board.Op            `json:"op"`
	Actor    string              `json:"actor,omitempty"`
	Fields   []board.FieldChange `json:"fields"`
	At       time.Time           `json:"at"`
}

// Load reads every stored entity into a snapshot.
func (r *Repository) Load(ctx context.Context) (board.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, body
		FROM entities
		ORDER BY kind ASC, id ASC
	`)
	if err != nil {
		return board.Snapshot{}, err
	}
	defer rows.Close()

	var snap board.Snapshot
	for rows.Next() {
		var kind, id, body string
		if err := rows.Scan(&kind, &id, &body); err != nil {
			return board.Snapshot{}, err
		}
		if err := decodeInto(&snap, board.EntityKind(kind), []byte(body)); err != nil {
			return board.Snapshot{}, fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return board.Snapshot{}, err
	}
	return snap, nil
}

func decodeInto(snap *board.Snapshot, kind board.EntityKind, body []byte) error {
	switch kind {
	case board.KindItem:
		var v board.WorkItem
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Items = append(snap.Items, v)
	case board.KindEpic:
		var v board.Epic
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Epics = append(snap.Epics, v)
	case board.KindSprint:
		var v board.Sprint
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Sprints = append(snap.Sprints, v)
	case board.KindView:
		var v board.SavedView
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Views = append(snap.Views, v)
	case board.KindTeam:
		var v board.Team
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Teams = append(snap.Teams, v)
	case board.KindInvite:
		var v board.Invite
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Invites = append(snap.Invites, v)
	case board.KindNotification:
		var v board.Notification
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snap.Notifications = append(snap.Notifications, v)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

// Apply writes one committed store change: the entity document is upserted
// (or removed for deletes) and the change is appended to the log.
func (r *Repository) Apply(ctx context.Context, c board.Change) error {
	body, err := json.Marshal(c.Entity)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", c.Kind, c.ID, err)
	}
	fields := c.Fields
	if fields == nil {
		fields = []board.FieldChange{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if c.Op == board.OpDelete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, string(c.Kind), c.ID); err != nil {
			return err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities(kind, id, board_id, version, body)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(kind, id) DO UPDATE SET
				board_id = excluded.board_id,
				version = excluded.version,
				body = excluded.body,
				last_updated_at = CURRENT_TIMESTAMP
		`, string(c.Kind), c.ID, c.BoardID, entityVersion(c.Entity), string(body))
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO change_log(kind, entity_id, board_id, op, actor, fields, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(c.Kind), c.ID, c.BoardID, string(c.Op), c.Actor, string(fieldsJSON), c.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func entityVersion(v any) int64 {
	if it, ok := v.(board.WorkItem); ok {
		return it.Version
	}
	return 0
}

// Persister returns a store subscriber that applies each change. Failures
// are logged; the in-memory store stays authoritative for the session.
func (r *Repository) Persister(logger *zap.Logger, timeout time.Duration) func(board.Change) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(c board.Change) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := r.Apply(ctx, c); err != nil {
			logger.Error("persist change",
				zap.String("kind", string(c.Kind)),
				zap.String("id", c.ID),
				zap.Error(err))
		}
	}
}

// RecentChanges returns the newest log entries first, optionally limited to
// one entity.
func (r *Repository) RecentChanges(ctx context.Context, kind board.EntityKind, entityID string, limit int) ([]ChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	conds := []string{"1=1"}
	args := make([]any, 0, 3)
	if kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(kind))
	}
	if entityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, entityID)
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT seq, kind, entity_id, board_id, op, actor, fields, at
		FROM change_log
		WHERE %s
		ORDER BY seq DESC
		LIMIT ?
	`, strings.Join(conds, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChange(row scanner) (ChangeRecord, error) {
	var rec ChangeRecord
	var kind, op, fieldsRaw, at string
	if err := row.Scan(&rec.Seq, &kind, &rec.EntityID, &rec.BoardID, &op, &rec.Actor, &fieldsRaw, &at); err != nil {
		return ChangeRecord{}, err
	}
	rec.Kind = board.EntityKind(kind)
	rec.Op = board.Op(op)
	if err := json.Unmarshal([]byte(fieldsRaw), &rec.Fields); err != nil {
		return ChangeRecord{}, fmt.Errorf("parse fields for change %d: %w", rec.Seq, err)
	}
	t, err := parseSQLiteTime(at)
	if err != nil {
		return ChangeRecord{}, err
	}
	rec.At = t
	return rec, nil
}

func parseSQLiteTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, value, time.UTC)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
