package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sessiond/sessiond/dispatch"
	"github.com/sessiond/sessiond/driver"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// PgStore is the PostgreSQL-backed Store. Every call runs as one work
// unit through the dispatcher, so it holds a pooled connection only for
// the duration of its queries.
type PgStore struct {
	d       *dispatch.Dispatcher
	timeout time.Duration
}

func NewPgStore(d *dispatch.Dispatcher, timeout time.Duration) *PgStore {
	return &PgStore{d: d, timeout: timeout}
}

// InitSchema creates the tables on startup.
func (s *PgStore) InitSchema(ctx context.Context) error {
	return s.d.Dispatch(ctx, s.timeout, func(ctx context.Context, conn driver.Conn) error {
		pg, err := pgConn(conn)
		if err != nil {
			return err
		}
		_, err = pg.Exec(ctx, schema)
		return err
	})
}

func (s *PgStore) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), UserID: userID, Title: title}
	err := s.d.Dispatch(ctx, s.timeout, func(ctx context.Context, conn driver.Conn) error {
		pg, err := pgConn(conn)
		if err != nil {
			return err
		}
		return pg.QueryRow(ctx,
			`INSERT INTO sessions (id, user_id, title) VALUES ($1, $2, $3)
			 RETURNING created_at, updated_at`,
			sess.ID, sess.UserID, sess.Title,
		).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *PgStore) ListSessions(ctx context.Context, userID string) ([]*Session, error) {
	var sessions []*Session
	err := s.d.Dispatch(ctx, s.timeout, func(ctx context.Context, conn driver.Conn) error {
		pg, err := pgConn(conn)
		if err != nil {
			return err
		}
		rows, err := pg.Query(ctx,
			`SELECT id, user_id, title, created_at, updated_at
			 FROM sessions WHERE user_id = $1 ORDER BY updated_at DESC`,
			userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var sess Session
			if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
				return err
			}
			sessions = append(sessions, &sess)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *PgStore) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}
	var messages []*Message
	err := s.d.Dispatch(ctx, s.timeout, func(ctx context.Context, conn driver.Conn) error {
		pg, err := pgConn(conn)
		if err != nil {
			return err
		}

		var exists bool
		if err := pg.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrSessionNotFound
		}

		rows, err := pg.Query(ctx,
			`SELECT id, session_id, role, content, created_at
			 FROM messages WHERE session_id = $1 ORDER BY created_at`,
			sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var msg Message
			if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
				return err
			}
			messages = append(messages, &msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *PgStore) AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}
	msg := &Message{ID: uuid.NewString(), SessionID: sessionID, Role: role, Content: content}
	err := s.d.Dispatch(ctx, s.timeout, func(ctx context.Context, conn driver.Conn) error {
		pg, err := pgConn(conn)
		if err != nil {
			return err
		}

		tag, err := pg.Exec(ctx,
			`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSessionNotFound
		}

		return pg.QueryRow(ctx,
			`INSERT INTO messages (id, session_id, role, content) VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			msg.ID, msg.SessionID, msg.Role, msg.Content,
		).Scan(&msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func pgConn(conn driver.Conn) (*pgx.Conn, error) {
	pg, ok := conn.(*driver.PgConn)
	if !ok {
		return nil, errors.New("store requires a postgres connection")
	}
	return pg.Conn(), nil
}

var _ Store = (*PgStore)(nil)
