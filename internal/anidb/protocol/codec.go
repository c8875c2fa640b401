package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Request is anything that can render itself as an AniDB UDP command
// line and validate the response code it gets back.
type Request interface {
	// Command is the verb sent as the first key=value-less token,
	// e.g. "FILE", "ANIMEDESC", "AUTH".
	Command() string
	// Params returns the key=value pairs to serialise after Command,
	// in the order the server expects them.
	Params() []KV
	// ValidCodes lists the response codes this request accepts as
	// success; any other code is an error (AnidbApiBadCode-equivalent).
	ValidCodes() []int
}

// KV is a single ordered request parameter.
type KV struct {
	Key   string
	Value string
}

// Encode renders a request as the ASCII command line sent to the
// server, e.g. "FILE size=123&ed2k=abc&fmask=...&amask=...".
func Encode(req Request) string {
	var b strings.Builder
	b.WriteString(req.Command())
	params := req.Params()
	for i, kv := range params {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv.Key)
		b.WriteByte('=')
		b.WriteString(kv.Value)
	}
	return b.String()
}

// Response is a parsed server reply: numeric code, free-text tag, and
// the '|'-delimited body split into rows of raw string columns (typed
// fields are decoded separately via Decode, since the column shape
// depends on which request produced the response).
type Response struct {
	Code     int
	Text     string
	Rows     [][]string
	Extended bool
}

// Parse splits a raw response line (and any following data lines) into
// a Response. line is the first line ("<code> <text>"); body is
// everything the server sent after it (already newline-joined, with
// AniDB's own '<br />' escape still intact — Parse itself does not
// unescape columns, only split them; column-level unescaping happens
// per-field in Decode since the ANIMEDESC title column is exempt from
// the slash-to-pipe rewrite).
func Parse(line string, body string) (Response, error) {
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 2)
	if len(parts) == 0 {
		return Response{}, fmt.Errorf("protocol: empty response")
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return Response{}, fmt.Errorf("protocol: malformed response code %q: %w", parts[0], err)
	}
	text := ""
	if len(parts) == 2 {
		text = parts[1]
	}

	resp := Response{Code: code, Text: text}
	body = strings.TrimRight(body, "\r\n")
	if body == "" {
		return resp, nil
	}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		resp.Rows = append(resp.Rows, splitRow(line))
	}
	return resp, nil
}

// splitRow splits a single '|'-delimited response row into raw,
// still-escaped columns.
func splitRow(line string) []string {
	return strings.Split(line, "|")
}

// unescapeColumn decodes a single raw response column in the order
// the server composed it in:
//
//  1. the wire's list delimiter, a literal apostrophe, is moved out of
//     the way to '§' (unused elsewhere in AniDB text) before anything
//     else runs, so it can't later be confused with a real apostrophe
//     restored by step 4;
//  2. '<br />' becomes a real newline;
//  3. '/' becomes '|', except in the ANIMEDESC title column, where a
//     literal '/' already meant "or" and was never escaped;
//  4. backtick, the escape for a literal content apostrophe, becomes
//     '\''.
//
// List-typed fields are split on '§' after this, the delimiter step 1
// relocated it to: a literal apostrophe in free text (restored by step
// 4) is never mistaken for a list separator.
// listDelimiter is where unescapeColumn relocates the wire's list
// delimiter (a literal apostrophe) to, so list-typed fields can be
// split on it without colliding with a real content apostrophe.
const listDelimiter = "§"

func unescapeColumn(raw string, isAnimeDescTitle bool) string {
	s := strings.ReplaceAll(raw, "'", listDelimiter)
	s = strings.ReplaceAll(s, "<br />", "\n")
	if !isAnimeDescTitle {
		s = strings.ReplaceAll(s, "/", "|")
	}
	s = strings.ReplaceAll(s, "`", "'")
	return s
}

// DecodeString unescapes a single raw response column using the
// standard (non-ANIMEDESC-title) rule.
func DecodeString(raw string) string {
	return unescapeColumn(raw, false)
}

// DecodeAnimeDescTitle unescapes the ANIMEDESC title column, where '/'
// is not rewritten to '|'.
func DecodeAnimeDescTitle(raw string) string {
	return unescapeColumn(raw, true)
}

// DecodeTyped converts a single already-unescaped column into the Go
// value its SemType calls for.
func DecodeTyped(raw string, t SemType) (interface{}, error) {
	if raw == "" {
		switch t {
		case TypeListInt, TypeListString:
			return nil, nil
		default:
			return raw, nil
		}
	}
	switch t {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: field not an integer: %q: %w", raw, err)
		}
		return n, nil
	case TypeTimestamp:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protocol: field not a unix timestamp: %q: %w", raw, err)
		}
		if n == 0 {
			return time.Time{}, nil
		}
		return time.Unix(n, 0).UTC(), nil
	case TypeListInt:
		parts := strings.Split(raw, listDelimiter)
		out := make([]int64, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				continue
			}
			n, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("protocol: list field not an integer: %q: %w", p, err)
			}
			out = append(out, n)
		}
		return out, nil
	case TypeListString:
		parts := strings.Split(raw, listDelimiter)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				continue
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return raw, nil
	}
}
