// Package pipeline drives a batch of file records through an ordered
// list of operations (hash, mylist-add, get-file-info, rename), one
// record fully independent of the next: a failure in one record's
// chain aborts only that record.
package pipeline

import "context"

// State is where a record sits in its own operation chain.
type State int

const (
	StatePresented State = iota
	StateHashed
	StateIdentified
	StateMetadataReady
	StateRenamed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePresented:
		return "PRESENTED"
	case StateHashed:
		return "HASHED"
	case StateIdentified:
		return "IDENTIFIED"
	case StateMetadataReady:
		return "METADATA_READY"
	case StateRenamed:
		return "RENAMED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is the mutable attribute bag one file carries through the
// pipeline. Path is the file's current on-disk location, updated in
// place by RenameOp; Attrs holds everything an operation produced for
// a later one to consume (ed2k, size, info, ...).
type Record struct {
	Path  string
	State State
	Attrs map[string]interface{}
}

// NewRecord starts a fresh record for the file at path.
func NewRecord(path string) *Record {
	return &Record{Path: path, State: StatePresented, Attrs: map[string]interface{}{}}
}

// Operation is one pipeline stage. Run reports whether the record may
// continue to the next operation; on false the record is marked
// FAILED and the remaining operations are skipped.
type Operation interface {
	Name() string
	TargetState() State
	Run(ctx context.Context, rec *Record) bool
}

// Pipeline is an ordered, fixed list of operations shared across all
// records it processes.
type Pipeline struct {
	ops []Operation
}

// New builds a Pipeline from ops, run in the given order.
func New(ops ...Operation) *Pipeline {
	return &Pipeline{ops: ops}
}

// Run drives rec through every operation in order, stopping at the
// first failure. Panics inside an operation are recovered at this
// boundary and treated as failure, per the runtime's "exceptions are
// caught and surfaced as failure" contract.
func (p *Pipeline) Run(ctx context.Context, rec *Record) (ok bool) {
	for _, op := range p.ops {
		if !p.runOne(ctx, op, rec) {
			rec.State = StateFailed
			return false
		}
		rec.State = op.TargetState()
	}
	return true
}

func (p *Pipeline) runOne(ctx context.Context, op Operation, rec *Record) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return op.Run(ctx, rec)
}
