package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgwireConn reaches ClickHouse through its PostgreSQL wire protocol
// listener. The simple protocol is used because ClickHouse does not
// support server-side prepared statements on that port.
type pgwireConn struct {
	conn *pgx.Conn
}

func openPostgres(ctx context.Context, creds Credentials) (conn, error) {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port)),
		Path:   "/" + creds.Database,
	}

	cfg, err := pgx.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if creds.DialTimeout > 0 {
		cfg.ConnectTimeout = creds.DialTimeout
	}

	c, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres wire: %w", err)
	}

	if err := c.Ping(ctx); err != nil {
		_ = c.Close(context.Background())
		return nil, fmt.Errorf("ping postgres wire: %w", err)
	}

	return &pgwireConn{conn: c}, nil
}

func (p *pgwireConn) query(ctx context.Context, query string, args ...any) (*Frame, error) {
	rows, err := p.conn.Query(ctx, numberPlaceholders(query), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres wire query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	frame := &Frame{Columns: make([]string, len(fields))}
	for i, f := range fields {
		frame.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read postgres wire row: %w", err)
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postgres wire rows: %w", err)
	}
	return frame, nil
}

func (p *pgwireConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.conn.Close(ctx)
}

// numberPlaceholders rewrites `?` into `$1`, `$2`, ... outside quoted text.
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '?':
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
