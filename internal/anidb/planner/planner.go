// Package planner composes the cache store and session transport into
// a single entry point for a FILE lookup: it serves what it can from
// the local cache, only goes to the network for the rest, and writes
// whatever the network returns back into the cache before returning.
package planner

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/anidbcli/anidbcli/internal/anidb/cache"
	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
)

// Doer is the subset of *session.Session the planner needs; letting
// tests substitute a fake avoids a real UDP round trip.
type Doer interface {
	Do(ctx context.Context, req interface {
		Command() string
		Params() []protocol.KV
	}) (protocol.Response, error)
}

// Planner answers FILE queries, preferring the cache and falling back
// to the network only for fields it doesn't already know.
type Planner struct {
	store   *cache.Store
	session Doer
}

// New builds a Planner over a cache store and a session.
func New(store *cache.Store, sess Doer) *Planner {
	return &Planner{store: store, session: sess}
}

// Result is what a FILE lookup produced, regardless of whether it came
// from the cache, the network, or a mix of both.
type Result struct {
	FID    int64
	Fields map[string]interface{}
	// FromCache lists the field names served without a network call.
	FromCache []string
	// NotFound is true when the file is known (cached or just-queried)
	// not to exist.
	NotFound bool
}

// ErrSuppressedNetworkAccess is returned when at least one requested
// field (or the file ID itself) is not cached but the caller has
// disabled network access.
var ErrSuppressedNetworkAccess = errors.New("planner: network access suppressed and result not fully cached")

// LookupFile resolves a FILE query by ed2k+size, consulting the
// negative cache, then locally-cached fields, then the network for
// the residual set — the same shape as
// AnidbConnector.send_request, split into named steps instead of one
// monolithic method.
func (p *Planner) LookupFile(ctx context.Context, ed2k string, size int64, fields []protocol.Field, allowNetwork bool) (Result, error) {
	if negative, err := p.store.CheckNegative(ed2k, size); err != nil {
		return Result{}, err
	} else if negative {
		return Result{NotFound: true}, nil
	}

	fid, haveFID, err := p.store.LookupFID(ed2k, size)
	if err != nil {
		return Result{}, err
	}

	result := Result{Fields: map[string]interface{}{}}
	residual := fields

	if haveFID {
		result.FID = fid
		result.Fields["fid"] = fid
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		cached, err := p.store.LookupFields(fid, names)
		if err != nil {
			return Result{}, err
		}
		residual = residual[:0]
		for _, f := range fields {
			raw, ok := cached[f.Name]
			if !ok {
				residual = append(residual, f)
				continue
			}
			v, err := protocol.DecodeTyped(raw, f.Type)
			if err != nil {
				return Result{}, errors.Wrapf(err, "planner: cached field %s", f.Name)
			}
			result.Fields[f.Name] = v
			result.FromCache = append(result.FromCache, f.Name)
		}
	}

	if len(residual) == 0 && haveFID {
		return result, nil
	}

	if !allowNetwork {
		if haveFID && len(residual) == 0 {
			return result, nil
		}
		return Result{}, ErrSuppressedNetworkAccess
	}

	req := &protocol.FileRequest{Fields: residual}
	if haveFID {
		req.Key = protocol.FileKeyFID{FID: fid}
	} else {
		req.Key = protocol.FileKeyED2K{ED2K: ed2k, Size: size}
	}

	resp, err := p.session.Do(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if err := req.CheckCode(resp); err != nil {
		var nf *protocol.NotFoundError
		if errors.As(err, &nf) {
			if recErr := p.store.RecordNegative(ed2k, size); recErr != nil {
				return Result{}, recErr
			}
			return Result{NotFound: true}, nil
		}
		return Result{}, err
	}

	decoded, err := req.Decode(resp)
	if err != nil {
		return Result{}, err
	}
	newFID, ok := decoded["fid"].(int64)
	if !ok {
		return Result{}, fmt.Errorf("planner: FILE response missing fid")
	}
	result.FID = newFID
	for k, v := range decoded {
		result.Fields[k] = v
	}

	if err := p.store.RecordIdentity(ed2k, size, newFID); err != nil {
		return Result{}, err
	}
	rawFields, err := req.DecodeRaw(resp)
	if err != nil {
		return Result{}, err
	}
	raw := make(map[string]string, len(residual))
	for _, f := range residual {
		if v, ok := rawFields[f.Name]; ok {
			raw[f.Name] = v
		}
	}
	if len(raw) > 0 {
		if err := p.store.RecordFields(newFID, raw); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}
