package session

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
)

// fakeTransport is a scripted Transport: each Send is paired with the
// next queued response (or a timeout/error if scripted).
type fakeTransport struct {
	responses [][]byte
	errs      []error
	sent      []string
	idx       int
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	i := f.idx
	f.idx++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		return nil, &net.OpError{Op: "read", Err: timeoutErr{}}
	}
	return f.responses[i], nil
}

func (f *fakeTransport) Close() error { return nil }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func fastPacer(s *Session) { s.pacer = NewPacer(time.Millisecond) }

func TestLoginPlainSession(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("200 abc123 LOGIN ACCEPTED\n"),
	}}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)

	err := s.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "abc123", s.SessionKey())
	require.Len(t, ft.sent, 1)
	assert.Contains(t, ft.sent[0], "AUTH user=alice&pass=secret")
}

func TestLoginWithEncryption(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("209 deadbeef ENCRYPTION ENABLED\n"),
	}}
	s := New(Credentials{Username: "alice", Password: "secret", APIKey: "mykey"}, ft)
	fastPacer(s)

	err := s.negotiateEncryption(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEncNegotiated, s.State())
	assert.Equal(t, "deadbeef", s.Salt())
}

func TestDoSendsWithSessionParam(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("200 abc123 LOGIN ACCEPTED\n"),
		[]byte("220 FILE\n123|5|deadbeef\n"),
	}}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)

	req := &protocol.FileRequest{
		Key:    protocol.FileKeyED2K{ED2K: "deadbeef", Size: 5},
		Fields: []protocol.Field{protocol.Fmask.MustByName("size"), protocol.Fmask.MustByName("ed2k")},
	}
	resp, err := s.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 220, resp.Code)
	require.Len(t, ft.sent, 2)
	assert.Contains(t, ft.sent[1], "&s=abc123")
}

func TestDoRetriesOnTimeout(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("200 abc123 LOGIN ACCEPTED\n"),
	}, errs: []error{nil, &net.OpError{Op: "read", Err: timeoutErr{}}, &net.OpError{Op: "read", Err: timeoutErr{}}}}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)

	req := &protocol.FileRequest{Key: protocol.FileKeyFID{FID: 1}}
	_, err := s.Do(context.Background(), req)
	assert.Error(t, err)
	// login + MaxSendRetries attempts that all time out
	assert.Equal(t, 1+MaxSendRetries, len(ft.sent))
}

func TestDoRelogsInOnceOn501(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("200 abc123 LOGIN ACCEPTED\n"),
		[]byte("501 LOGIN FIRST\n"),
		[]byte("200 xyz789 LOGIN ACCEPTED\n"),
		[]byte("220 FILE\n1|\n"),
	}}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)

	req := &protocol.FileRequest{Key: protocol.FileKeyFID{FID: 1}}
	resp, err := s.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 220, resp.Code)
	assert.Equal(t, "xyz789", s.SessionKey())
}

func TestBanLatchesPermanently(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		[]byte("200 abc123 LOGIN ACCEPTED\n"),
		[]byte("555 BANNED\n"),
	}}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)

	req := &protocol.FileRequest{Key: protocol.FileKeyFID{FID: 1}}
	_, err := s.Do(context.Background(), req)
	require.Error(t, err)
	var banned *BannedError
	require.ErrorAs(t, err, &banned)
	assert.Equal(t, StateBanned, s.State())

	_, err = s.Do(context.Background(), req)
	require.Error(t, err)
	assert.ErrorAs(t, err, &banned)
	assert.Len(t, ft.sent, 2, "no further sends after ban latches")
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	_, ok, err := LoadPersisted(path)
	require.NoError(t, err)
	assert.False(t, ok)

	p := Persisted{SessionToken: "abc123", BoundAddr: "1.2.3.4:9000", Timestamp: time.Now()}
	require.NoError(t, SavePersisted(path, p))

	loaded, ok, err := LoadPersisted(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.SessionToken, loaded.SessionToken)
	assert.True(t, loaded.Fresh(time.Now()))

	require.NoError(t, DeletePersisted(path))
	_, ok, err = LoadPersisted(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResumeSkipsLogin(t *testing.T) {
	ft := &fakeTransport{}
	s := New(Credentials{Username: "alice", Password: "secret"}, ft)
	fastPacer(s)
	s.Resume(Persisted{SessionToken: "resumed", Timestamp: time.Now()})
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "resumed", s.SessionKey())
	assert.Empty(t, ft.sent)
}
