package pipeline

import (
	"context"

	"github.com/anidbcli/anidbcli/internal/ed2k"
	"github.com/anidbcli/anidbcli/internal/output"
)

// HashOp computes a record's ed2k hash and size, grounded on
// operations.py's hash_operation_factory.
type HashOp struct {
	Output   output.Collaborator
	ShowED2K bool
}

func (h *HashOp) Name() string       { return "hash" }
func (h *HashOp) TargetState() State { return StateHashed }

func (h *HashOp) Run(ctx context.Context, rec *Record) bool {
	sum, size, err := ed2k.HashFile(rec.Path)
	if err != nil {
		h.Output.Error("Failed to generate hash for %q: %v", rec.Path, err)
		return false
	}
	rec.Attrs["ed2k"] = sum.String()
	rec.Attrs["size"] = size
	if h.ShowED2K {
		h.Output.Info("%q was hashed: %s", rec.Path, ed2k.Link(rec.Path, size, sum))
	}
	return true
}
