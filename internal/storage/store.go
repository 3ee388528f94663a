package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Protocol selects the wire transport used to reach the analytical store.
type Protocol string

const (
	ProtocolNative   Protocol = "native"
	ProtocolHTTP     Protocol = "http"
	ProtocolPostgres Protocol = "postgres"
)

var (
	// ErrMissingCredentials indicates an incomplete credential set. It is a
	// configuration problem and is never retried.
	ErrMissingCredentials = errors.New("storage: missing credentials")
	// ErrUnsupportedProtocol indicates an unknown transport name.
	ErrUnsupportedProtocol = errors.New("storage: unsupported protocol")
)

// Credentials address one logical data source.
type Credentials struct {
	Source      string
	Host        string
	Port        int
	Username    string
	Password    string
	Database    string
	Protocol    Protocol
	DialTimeout time.Duration
}

// Validate reports which required fields are absent.
func (c Credentials) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for source %q: %s", ErrMissingCredentials, c.Source, strings.Join(missing, ", "))
	}
	switch c.Protocol {
	case ProtocolNative, ProtocolHTTP, ProtocolPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocol, c.Protocol)
	}
	return nil
}

// Row is one result row keyed by column name.
type Row map[string]any

// Frame is a tabular result with ordered columns.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Column returns all values of the named column.
func (f *Frame) Column(name string) ([]any, bool) {
	idx := -1
	for i, col := range f.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Records converts the frame into rows keyed by column name.
func (f *Frame) Records() []Row {
	if f == nil {
		return nil
	}
	records := make([]Row, 0, len(f.Rows))
	for _, values := range f.Rows {
		row := make(Row, len(f.Columns))
		for i, col := range f.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		records = append(records, row)
	}
	return records
}

// Querier executes read-only SQL with positional `?` parameters.
type Querier interface {
	QueryFrame(ctx context.Context, query string, args ...any) (*Frame, error)
}

// QueryRows runs query and returns row maps.
func QueryRows(ctx context.Context, q Querier, query string, args ...any) ([]Row, error) {
	frame, err := q.QueryFrame(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return frame.Records(), nil
}

// QueryObserver receives the duration and outcome of every query.
type QueryObserver interface {
	ObserveQuery(source string, elapsed time.Duration, err error)
}

type conn interface {
	query(ctx context.Context, query string, args ...any) (*Frame, error)
	Close() error
}

type opener func(ctx context.Context, creds Credentials) (conn, error)

// Option customises a Gateway.
type Option func(*Gateway)

// WithObserver attaches a query observer.
func WithObserver(o QueryObserver) Option {
	return func(g *Gateway) {
		g.observer = o
	}
}

func withOpener(open opener) Option {
	return func(g *Gateway) {
		g.open = open
	}
}

// Gateway issues analytical queries against one data source. It holds no
// connection between operations: every session dials, runs and closes.
type Gateway struct {
	creds    Credentials
	observer QueryObserver
	open     opener
}

// NewGateway validates credentials and prepares a gateway.
func NewGateway(creds Credentials, opts ...Option) (*Gateway, error) {
	if creds.Protocol == "" {
		creds.Protocol = ProtocolHTTP
	}
	if creds.Port == 0 {
		creds.Port = defaultPort(creds.Protocol)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{creds: creds}
	for _, opt := range opts {
		opt(g)
	}
	if g.open == nil {
		g.open = openerFor(creds.Protocol)
	}
	return g, nil
}

// Source returns the logical data source name.
func (g *Gateway) Source() string {
	return g.creds.Source
}

// WithSession opens a connection, hands it to fn and closes it on every
// exit path. The Querier must not outlive fn or be shared across goroutines.
func (g *Gateway) WithSession(ctx context.Context, fn func(q Querier) error) (err error) {
	c, err := g.open(ctx, g.creds)
	if err != nil {
		return fmt.Errorf("open %s session: %w", g.creds.Source, err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s session: %w", g.creds.Source, cerr)
		}
	}()

	return fn(&session{conn: c, source: g.creds.Source, observer: g.observer})
}

// QueryFrame runs a single query in its own session.
func (g *Gateway) QueryFrame(ctx context.Context, query string, args ...any) (*Frame, error) {
	var frame *Frame
	err := g.WithSession(ctx, func(q Querier) error {
		var qerr error
		frame, qerr = q.QueryFrame(ctx, query, args...)
		return qerr
	})
	return frame, err
}

// Query runs a single query in its own session and returns row maps.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	frame, err := g.QueryFrame(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return frame.Records(), nil
}

type session struct {
	conn     conn
	source   string
	observer QueryObserver
}

func (s *session) QueryFrame(ctx context.Context, query string, args ...any) (*Frame, error) {
	started := time.Now()
	frame, err := s.conn.query(ctx, query, args...)
	if s.observer != nil {
		s.observer.ObserveQuery(s.source, time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func defaultPort(p Protocol) int {
	switch p {
	case ProtocolNative:
		return 9000
	case ProtocolPostgres:
		return 9005
	default:
		return 8123
	}
}

func openerFor(p Protocol) opener {
	if p == ProtocolPostgres {
		return openPostgres
	}
	return openClickHouse
}
