package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	frame   *Frame
	err     error
	closed  bool
	queries []string
	args    [][]any
}

func (f *fakeConn) query(_ context.Context, query string, args ...any) (*Frame, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return f.frame, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type recordingObserver struct {
	sources []string
	errs    []error
}

func (r *recordingObserver) ObserveQuery(source string, _ time.Duration, err error) {
	r.sources = append(r.sources, source)
	r.errs = append(r.errs, err)
}

func testCredentials() Credentials {
	return Credentials{Source: "polymarket", Host: "localhost", Username: "default", Password: "secret"}
}

func TestNewGatewayMissingCredentials(t *testing.T) {
	_, err := NewGateway(Credentials{Source: "polymarket", Host: "localhost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "password")
}

func TestNewGatewayUnsupportedProtocol(t *testing.T) {
	creds := testCredentials()
	creds.Protocol = "grpc"
	_, err := NewGateway(creds)
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
}

func TestNewGatewayDefaults(t *testing.T) {
	g, err := NewGateway(testCredentials())
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, g.creds.Protocol)
	assert.Equal(t, 8123, g.creds.Port)
	assert.Equal(t, "polymarket", g.Source())

	creds := testCredentials()
	creds.Protocol = ProtocolPostgres
	g, err = NewGateway(creds)
	require.NoError(t, err)
	assert.Equal(t, 9005, g.creds.Port)
}

func TestGatewayQueryClosesSession(t *testing.T) {
	fc := &fakeConn{frame: &Frame{Columns: []string{"count"}, Rows: [][]any{{uint64(3)}}}}
	obs := &recordingObserver{}
	g, err := NewGateway(testCredentials(), WithObserver(obs), withOpener(func(context.Context, Credentials) (conn, error) {
		return fc, nil
	}))
	require.NoError(t, err)

	rows, err := g.Query(context.Background(), "SELECT 3 AS count")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(3), rows[0]["count"])
	assert.True(t, fc.closed)
	assert.Equal(t, []string{"polymarket"}, obs.sources)
}

func TestGatewaySessionClosesOnError(t *testing.T) {
	boom := errors.New("boom")
	fc := &fakeConn{err: boom}
	obs := &recordingObserver{}
	g, err := NewGateway(testCredentials(), WithObserver(obs), withOpener(func(context.Context, Credentials) (conn, error) {
		return fc, nil
	}))
	require.NoError(t, err)

	_, err = g.QueryFrame(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, boom)
	assert.True(t, fc.closed)
	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0], boom)
}

func TestGatewaySessionClosesOnCallbackError(t *testing.T) {
	fc := &fakeConn{}
	g, err := NewGateway(testCredentials(), withOpener(func(context.Context, Credentials) (conn, error) {
		return fc, nil
	}))
	require.NoError(t, err)

	sentinel := errors.New("callback failed")
	err = g.WithSession(context.Background(), func(Querier) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, fc.closed)
}

func TestGatewayOpenError(t *testing.T) {
	dial := errors.New("dial refused")
	g, err := NewGateway(testCredentials(), withOpener(func(context.Context, Credentials) (conn, error) {
		return nil, dial
	}))
	require.NoError(t, err)

	called := false
	err = g.WithSession(context.Background(), func(Querier) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, dial)
	assert.False(t, called)
}

func TestFrameColumnAndRecords(t *testing.T) {
	f := &Frame{Columns: []string{"a", "b"}, Rows: [][]any{{1, "x"}, {2, "y"}}}

	col, ok := f.Column("b")
	require.True(t, ok)
	assert.Equal(t, []any{"x", "y"}, col)

	_, ok = f.Column("missing")
	assert.False(t, ok)

	records := f.Records()
	require.Len(t, records, 2)
	assert.Equal(t, Row{"a": 2, "b": "y"}, records[1])
	assert.Equal(t, 0, (*Frame)(nil).Len())
}
