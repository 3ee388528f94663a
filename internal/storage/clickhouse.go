package storage

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"strconv"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type clickhouseConn struct {
	conn driver.Conn
}

func openClickHouse(ctx context.Context, creds Credentials) (conn, error) {
	protocol := clickhouse.HTTP
	if creds.Protocol == ProtocolNative {
		protocol = clickhouse.Native
	}

	opts := &clickhouse.Options{
		Protocol: protocol,
		Addr:     []string{net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))},
		Auth: clickhouse.Auth{
			Database: creds.Database,
			Username: creds.Username,
			Password: creds.Password,
		},
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	if creds.DialTimeout > 0 {
		opts.DialTimeout = creds.DialTimeout
	}

	c, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &clickhouseConn{conn: c}, nil
}

func (c *clickhouseConn) query(ctx context.Context, query string, args ...any) (*Frame, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	frame := &Frame{Columns: rows.Columns()}
	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan clickhouse row: %w", err)
		}
		values := make([]any, len(dest))
		for i, d := range dest {
			values[i] = reflect.ValueOf(d).Elem().Interface()
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clickhouse rows: %w", err)
	}
	return frame, nil
}

func (c *clickhouseConn) Close() error {
	return c.conn.Close()
}
