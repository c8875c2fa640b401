package protocol

import "fmt"

// Well-known response codes this package's Request implementations
// check for directly; the full code space is much larger, and most of
// it just flows through as a *BadCodeError.
const (
	CodeLoginAccepted       = 200
	CodeLoginAcceptedNewVer = 201
	CodeLoginFirst          = 501
	CodeInvalidSession      = 506
	CodeResultFile          = 220
	CodeResultAnimeDesc     = 233
	CodeNoSuchFile          = 320
	CodeNoSuchAnime         = 330
	CodeBanned              = 555
	CodeMylistAdded         = 210
	CodeAlreadyInMylist     = 310
	CodeMylistEdited        = 311
)

// BadCodeError reports a response code a Request did not accept.
type BadCodeError struct {
	Command  string
	Expected []int
	Received int
}

func (e *BadCodeError) Error() string {
	return fmt.Sprintf("protocol: %s: unexpected response code %d (expected one of %v)", e.Command, e.Received, e.Expected)
}

// NotFoundError reports a well-formed "no such record" response —
// distinguished from BadCodeError so callers can route it to the
// negative cache instead of treating it as a transport failure.
type NotFoundError struct {
	Command  string
	Received int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("protocol: %s: not found (code %d)", e.Command, e.Received)
}

// BannedError reports the server's permanent ban code (555). Sessions
// observing this must latch into a terminal banned state and stop
// issuing requests entirely.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("protocol: banned: %s", e.Reason)
}

// LoginFirstError reports code 501, telling the caller the session
// needs a fresh AUTH before the request can be retried.
type LoginFirstError struct{}

func (e *LoginFirstError) Error() string { return "protocol: not logged in (501)" }

// CheckCode validates a response code against the codes a Request
// accepts, translating the well-known not-found/login-first/banned
// codes into their typed sentinels and everything else into
// BadCodeError.
func CheckCode(command string, resp Response, notFoundCode int, validCodes []int) error {
	if resp.Code == CodeBanned {
		return &BannedError{Reason: resp.Text}
	}
	if resp.Code == CodeLoginFirst {
		return &LoginFirstError{}
	}
	if notFoundCode != 0 && resp.Code == notFoundCode {
		return &NotFoundError{Command: command, Received: resp.Code}
	}
	for _, c := range validCodes {
		if resp.Code == c {
			return nil
		}
	}
	return &BadCodeError{Command: command, Expected: validCodes, Received: resp.Code}
}
