package driver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNewPostgresBadURL(t *testing.T) {
	_, err := NewPostgres("://not-a-url")
	assert.Error(t, err)
}

func TestConnectionFault(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fault bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"net timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fault, ConnectionFault(tt.err))
		})
	}
}
