package protocol

import "strconv"

// AuthRequest logs the session in; an accepted response carries the
// server's assigned session key in its text, extracted by SessionKey.
type AuthRequest struct {
	User     string
	Pass     string
	Client   string
	ClientVer string
	ProtoVer int
}

func (r *AuthRequest) Command() string { return "AUTH" }

func (r *AuthRequest) Params() []KV {
	return []KV{
		{Key: "user", Value: r.User},
		{Key: "pass", Value: r.Pass},
		{Key: "protover", Value: strconv.Itoa(r.ProtoVer)},
		{Key: "client", Value: r.Client},
		{Key: "clientver", Value: r.ClientVer},
		{Key: "enc", Value: "UTF8"},
	}
}

func (r *AuthRequest) ValidCodes() []int {
	return []int{CodeLoginAccepted, CodeLoginAcceptedNewVer}
}

func (r *AuthRequest) CheckCode(resp Response) error {
	return CheckCode("AUTH", resp, 0, r.ValidCodes())
}

// SessionKey extracts the session key from an accepted AUTH
// response's text, which the server formats as "<key> <banner...>".
func (r *AuthRequest) SessionKey(resp Response) string {
	for i, c := range resp.Text {
		if c == ' ' {
			return resp.Text[:i]
		}
	}
	return resp.Text
}

// EncryptRequest negotiates the per-session AES key salt for a user
// before AUTH; the server's 209 response text carries the salt.
type EncryptRequest struct {
	User string
}

func (r *EncryptRequest) Command() string   { return "ENCRYPT" }
func (r *EncryptRequest) Params() []KV      { return []KV{{Key: "user", Value: r.User}, {Key: "type", Value: "1"}} }
func (r *EncryptRequest) ValidCodes() []int { return []int{209} }
func (r *EncryptRequest) CheckCode(resp Response) error {
	return CheckCode("ENCRYPT", resp, 0, r.ValidCodes())
}

// Salt extracts the salt from a 209 response's text, formatted as
// "<salt> <banner...>".
func (r *EncryptRequest) Salt(resp Response) string {
	for i, c := range resp.Text {
		if c == ' ' {
			return resp.Text[:i]
		}
	}
	return resp.Text
}

// LogoutRequest ends the session. The server's acknowledgement code
// (203) is accepted but not load-bearing: close the transport either
// way.
type LogoutRequest struct {
	Session string
}

func (r *LogoutRequest) Command() string   { return "LOGOUT" }
func (r *LogoutRequest) Params() []KV      { return []KV{{Key: "s", Value: r.Session}} }
func (r *LogoutRequest) ValidCodes() []int { return []int{203} }
func (r *LogoutRequest) CheckCode(resp Response) error {
	return CheckCode("LOGOUT", resp, 0, r.ValidCodes())
}

// MylistAddRequest registers a file in the user's mylist by content
// key.
type MylistAddRequest struct {
	Key    FileKey
	Viewed bool
	State  int
	// Edit resends the same key as an update instead of an insert,
	// used to mark an already-present entry watched (response 310).
	Edit bool
}

func (r *MylistAddRequest) Command() string { return "MYLISTADD" }

func (r *MylistAddRequest) Params() []KV {
	params := append([]KV{}, r.Key.params()...)
	viewed := "0"
	if r.Viewed {
		viewed = "1"
	}
	params = append(params,
		KV{Key: "viewed", Value: viewed},
		KV{Key: "state", Value: strconv.Itoa(r.State)},
	)
	if r.Edit {
		params = append(params, KV{Key: "edit", Value: "1"})
	}
	return params
}

func (r *MylistAddRequest) ValidCodes() []int { return []int{210, 310, 311} }
func (r *MylistAddRequest) CheckCode(resp Response) error {
	return CheckCode("MYLISTADD", resp, 0, r.ValidCodes())
}

