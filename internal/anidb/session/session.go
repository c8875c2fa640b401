package session

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/anidbcli/anidbcli/internal/anidb/crypt"
	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
)

const (
	// PaceInterval is the minimum spacing between outbound datagrams.
	PaceInterval = 2 * time.Second
	// ReceiveTimeout matches the source's SOCKET_TIMEOUT.
	ReceiveTimeout = 10 * time.Second
	// MaxSendRetries matches the source's RETRY_COUNT.
	MaxSendRetries = 3
	// IdleExpiry is how long a session is trusted without a fresh
	// call before it is treated as expired and re-logged-in.
	IdleExpiry = 35 * time.Minute
	clientName = "anidbcli"
	clientVer  = "1"
	protoVer   = 3
)

// Credentials identifies a user to the server, plus the optional API
// key that turns on encryption.
type Credentials struct {
	Username string
	Password string
	APIKey   string
}

// Session drives one logical AniDB UDP session: transport, cipher,
// pacing, retry, and state.
type Session struct {
	creds     Credentials
	transport Transport
	pacer     *Pacer

	state     State
	cipher    crypt.Cipher
	sessionKey string
	salt      string
	lastUsed  time.Time

	banReason string
}

// New builds a Session over transport, starting in StateNew with no
// encryption.
func New(creds Credentials, transport Transport) *Session {
	return &Session{
		creds:     creds,
		transport: transport,
		pacer:     NewPacer(PaceInterval),
		state:     StateNew,
		cipher:    crypt.Plain{},
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// BannedError is returned once the session has observed a 555
// response; it latches permanently and every subsequent call returns
// the same error without touching the network.
type BannedError struct{ Reason string }

func (e *BannedError) Error() string { return "session: banned: " + e.Reason }

// sendRaw paces, encrypts, sends, receives, and decrypts one
// request/response pair with no retry or session bookkeeping.
func (s *Session) sendRaw(ctx context.Context, line string) (protocol.Response, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return protocol.Response{}, err
	}
	defer s.pacer.Done()

	payload, err := s.cipher.Encrypt(line)
	if err != nil {
		return protocol.Response{}, errors.Wrap(err, "session: encrypt")
	}
	if err := s.transport.Send(ctx, payload); err != nil {
		return protocol.Response{}, errors.Wrap(err, "session: send")
	}
	raw, err := s.transport.Receive(ctx)
	if err != nil {
		return protocol.Response{}, errors.Wrap(err, "session: receive")
	}
	if len(raw) >= 4 && string(raw[:4]) == "555 " {
		s.state = StateBanned
		s.banReason = string(raw)
		return protocol.Response{}, &BannedError{Reason: s.banReason}
	}
	decoded, err := s.cipher.Decrypt(raw)
	if err != nil {
		return protocol.Response{}, errors.Wrap(err, "session: decrypt")
	}
	head, body, _ := strings.Cut(strings.TrimRight(decoded, "\r\n"), "\n")
	return protocol.Parse(head, body)
}

// negotiateEncryption runs the ENCRYPT handshake and swaps the
// session's cipher to AES128ECB. Only attempted when credentials carry
// an API key; sessions without one stay on Plain for their entire
// lifetime.
func (s *Session) negotiateEncryption(ctx context.Context) error {
	req := &protocol.EncryptRequest{User: s.creds.Username}
	resp, err := s.sendRaw(ctx, protocol.Encode(req))
	if err != nil {
		return err
	}
	if err := req.CheckCode(resp); err != nil {
		return errors.Wrap(err, "session: ENCRYPT")
	}
	s.salt = req.Salt(resp)
	key := crypt.DeriveKey(s.creds.APIKey, s.salt)
	cipher, err := crypt.NewAES128ECB(key)
	if err != nil {
		return errors.Wrap(err, "session: derive AES key")
	}
	s.cipher = cipher
	s.state = StateEncNegotiated
	return nil
}

// Login performs ENCRYPT (if an API key is configured) then AUTH,
// bringing the session from StateNew/StateExpired to StateActive.
func (s *Session) Login(ctx context.Context) error {
	if s.state.terminal() {
		if s.state == StateBanned {
			return &BannedError{Reason: s.banReason}
		}
		return errors.New("session: login on closed session")
	}
	if s.creds.APIKey != "" && s.state == StateNew {
		if err := s.negotiateEncryption(ctx); err != nil {
			return err
		}
	}
	req := &protocol.AuthRequest{
		User: s.creds.Username, Pass: s.creds.Password,
		Client: clientName, ClientVer: clientVer, ProtoVer: protoVer,
	}
	resp, err := s.sendRaw(ctx, protocol.Encode(req))
	if err != nil {
		return err
	}
	if err := req.CheckCode(resp); err != nil {
		return errors.Wrap(err, "session: AUTH")
	}
	s.sessionKey = req.SessionKey(resp)
	s.state = StateActive
	s.lastUsed = time.Now()
	return nil
}

// Do sends an authenticated request (one with a Command/Params pair
// that needs "&s=<session>" appended), retrying on receive timeout up
// to MaxSendRetries times and re-logging-in at most once if the
// server reports "login first" (501).
func (s *Session) Do(ctx context.Context, req interface {
	Command() string
	Params() []protocol.KV
}) (protocol.Response, error) {
	if s.state == StateBanned {
		return protocol.Response{}, &BannedError{Reason: s.banReason}
	}
	if s.state.terminal() {
		return protocol.Response{}, errors.New("session: session closed")
	}
	if s.state == StateNew || s.state == StateExpired || time.Since(s.lastUsed) > IdleExpiry {
		if err := s.Login(ctx); err != nil {
			return protocol.Response{}, err
		}
	}

	reloggedIn := false
	var lastErr error
	for attempt := 0; attempt < MaxSendRetries; attempt++ {
		line := encodeWithSession(req, s.sessionKey)
		resp, err := s.sendRaw(ctx, line)
		if err != nil {
			var banned *BannedError
			if errors.As(err, &banned) {
				return protocol.Response{}, err
			}
			if isTimeout(err) {
				lastErr = err
				continue
			}
			return protocol.Response{}, err
		}
		if resp.Code == protocol.CodeLoginFirst {
			s.sessionKey = ""
			s.state = StateNew
			if reloggedIn {
				return resp, nil
			}
			reloggedIn = true
			if err := s.Login(ctx); err != nil {
				return protocol.Response{}, err
			}
			continue
		}
		s.lastUsed = time.Now()
		return resp, nil
	}
	return protocol.Response{}, errors.Wrap(lastErr, "session: exhausted retries")
}

// encodeWithSession renders req's command line with the session key
// appended as the final parameter, matching
// f"{content}&s={self._session}" in the source.
func encodeWithSession(req interface {
	Command() string
	Params() []protocol.KV
}, sessionKey string) string {
	params := append(append([]protocol.KV{}, req.Params()...), protocol.KV{Key: "s", Value: sessionKey})
	return protocol.Encode(reqWithParams{cmd: req.Command(), params: params})
}

type reqWithParams struct {
	cmd    string
	params []protocol.KV
}

func (r reqWithParams) Command() string      { return r.cmd }
func (r reqWithParams) Params() []protocol.KV { return r.params }
func (r reqWithParams) ValidCodes() []int     { return nil }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Close logs out (if active) and closes the transport.
func (s *Session) Close(ctx context.Context) error {
	if s.state == StateActive {
		req := &protocol.LogoutRequest{Session: s.sessionKey}
		_, _ = s.sendRaw(ctx, protocol.Encode(req))
	}
	s.state = StateClosed
	return s.transport.Close()
}

// SessionKey exposes the current session key, for persistence.
func (s *Session) SessionKey() string { return s.sessionKey }

// Salt exposes the negotiated encryption salt, for persistence.
func (s *Session) Salt() string { return s.salt }
