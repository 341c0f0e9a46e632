package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres opens pgx connections from a parsed DSN.
type Postgres struct {
	cfg *pgx.ConnConfig
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	return &Postgres{cfg: cfg}, nil
}

func (d *Postgres) Connect(ctx context.Context) (Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, d.cfg)
	if err != nil {
		return nil, err
	}
	return &PgConn{conn: conn}, nil
}

// PgConn wraps a single *pgx.Conn for the pool.
type PgConn struct {
	conn *pgx.Conn
}

// Conn exposes the underlying pgx connection to work units.
func (c *PgConn) Conn() *pgx.Conn {
	return c.conn
}

func (c *PgConn) Probe(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *PgConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// ConnectionFault reports whether err indicates the connection itself is
// unusable, as opposed to an application-level failure such as a
// constraint violation. Slots whose work fails with a connection fault
// are discarded instead of returned to the pool.
func ConnectionFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P01..57P03: server
		// shutdown or crash. 53300: too many connections.
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "57P") ||
			pgErr.Code == "53300"
	}
	return false
}
