package pipeline

import (
	"context"

	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
	"github.com/anidbcli/anidbcli/internal/output"
)

// Doer is the subset of *session.Session a pipeline operation needs
// to issue one authenticated request.
type Doer interface {
	Do(ctx context.Context, req interface {
		Command() string
		Params() []protocol.KV
	}) (protocol.Response, error)
}

// MylistAddOp adds a hashed file to the user's mylist, editing the
// existing entry instead when the server reports it's already there.
// Grounded on operations.py:MylistAddOperation, including its texture
// of never failing the record: mylist bookkeeping is best-effort and
// must not block identification/rename for the same file.
type MylistAddOp struct {
	Doer      Doer
	Output    output.Collaborator
	State     int
	Unwatched bool
}

func (m *MylistAddOp) Name() string       { return "mylist-add" }
func (m *MylistAddOp) TargetState() State { return StateIdentified }

func (m *MylistAddOp) Run(ctx context.Context, rec *Record) bool {
	key := protocol.FileKeyED2K{ED2K: rec.Attrs["ed2k"].(string), Size: rec.Attrs["size"].(int64)}
	req := &protocol.MylistAddRequest{Key: key, Viewed: !m.Unwatched, State: m.State}
	resp, err := m.Doer.Do(ctx, req)
	if err != nil {
		m.Output.Error("Failed to add file to mylist: %v", err)
		return true
	}
	switch resp.Code {
	case protocol.CodeMylistAdded:
		m.Output.Success("Mylist entry added.")
	case protocol.CodeAlreadyInMylist:
		m.Output.Warning("Already in mylist.")
		edit := &protocol.MylistAddRequest{Key: key, Viewed: !m.Unwatched, State: m.State, Edit: true}
		editResp, err := m.Doer.Do(ctx, edit)
		if err == nil && editResp.Code == protocol.CodeMylistEdited {
			m.Output.Success("Mylist entry state updated.")
		} else {
			m.Output.Warning("Could not mark as watched.")
		}
	default:
		m.Output.Error("Couldn't add to mylist: %s", resp.Text)
	}
	return true
}
