package session

import (
	"context"

	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/value"
)

// Command is a tagged request for the generic Dispatch entry point: a
// tagged union of commands. Op selects which family/command runs;
// only the fields that command needs are read. This generalizes a
// typical cluster FSM's Command{Op, Data} shape from a JSON payload to
// a plain struct, since Strata has no wire boundary to serialize across.
//
// Most Go callers should use the typed Session methods directly (KvPut,
// GraphAddNode, …) — Dispatch exists for a front end that only knows
// command names at runtime, such as a REPL or scripting host.
type Command struct {
	Op string

	Branch   string
	Key      string
	Path     string
	Cell     string
	Stream   string
	Graph    string
	Node     string
	Src, Dst string
	EdgeType string

	Value    value.Value
	Expected value.Version
	Metadata *value.Object

	ForkDestination string
	MergeTarget     string

	AutoEmbed bool
}

// Output is Dispatch's uniform tagged result. Only the fields relevant to
// the command's Op are populated; callers are expected to know which
// shape to read given the Op they sent.
type Output struct {
	Err error

	Version value.Version
	Value   value.Value
	Found   bool
	History []value.Versioned

	Bool bool
	Info Info
}

// Dispatch routes cmd to its handler: each op calls the matching typed
// Session method, which consults s.tx, so KV/JSON/State/Event commands
// buffer into the active transaction when one is open and apply directly
// otherwise.
func (s *Session) Dispatch(ctx context.Context, cmd Command) Output {
	switch cmd.Op {
	case "Ping":
		return Output{Value: value.String(s.Ping())}
	case "Info":
		return Output{Info: s.Info()}
	case "Flush":
		return Output{Err: s.Flush()}
	case "Compact":
		path, err := s.Compact()
		return Output{Err: err, Value: value.String(path)}

	case "TxnBegin":
		return Output{Err: s.TxnBegin(cmd.Branch)}
	case "TxnCommit":
		v, err := s.TxnCommit()
		return Output{Version: v, Err: err}
	case "TxnRollback":
		return Output{Err: s.TxnRollback()}

	case "BranchCreate":
		v, err := s.BranchCreate(cmd.Key, cmd.Key, cmd.Metadata, "", 0)
		return Output{Version: v, Err: err}
	case "BranchExists":
		return Output{Bool: s.BranchExists(cmd.Key)}
	case "BranchDelete":
		ok, err := s.BranchDelete(cmd.Key)
		return Output{Bool: ok, Err: err}
	case "BranchFork":
		v, err := s.BranchFork(cmd.Branch, cmd.ForkDestination, 0)
		return Output{Version: v, Err: err}

	case "KvPut":
		v, err := s.KvPut(ctx, cmd.Key, cmd.Value)
		return Output{Version: v, Err: err}
	case "KvGet":
		val, ok, err := s.KvGet(cmd.Key)
		return Output{Value: val, Found: ok, Err: err}
	case "KvDelete":
		ok, err := s.KvDelete(cmd.Key)
		return Output{Bool: ok, Err: err}
	case "KvCas":
		v, err := s.KvCas(cmd.Key, cmd.Expected, cmd.Value)
		return Output{Version: v, Err: err}

	case "JsonSet":
		v, err := s.JsonSet(ctx, cmd.Key, cmd.Path, cmd.Value)
		return Output{Version: v, Err: err}
	case "JsonGet":
		val, ok, err := s.JsonGet(cmd.Key, cmd.Path)
		return Output{Value: val, Found: ok, Err: err}
	case "JsonDelete":
		ok, err := s.JsonDelete(cmd.Key, cmd.Path)
		return Output{Bool: ok, Err: err}

	case "StateInit":
		v, err := s.StateInit(ctx, cmd.Cell, cmd.Value)
		return Output{Version: v, Err: err}
	case "StateSet":
		v, err := s.StateSet(ctx, cmd.Cell, cmd.Value)
		return Output{Version: v, Err: err}
	case "StateRead":
		val, ok, err := s.StateRead(cmd.Cell)
		return Output{Value: val, Found: ok, Err: err}
	case "StateCas":
		v, err := s.StateCas(cmd.Cell, cmd.Expected, cmd.Value)
		return Output{Version: v, Err: err}

	case "EventAppend":
		v, err := s.EventAppend(cmd.Stream, cmd.Value)
		return Output{Version: v, Err: err}

	case "GraphAddNode":
		v, err := s.GraphAddNode(cmd.Graph, cmd.Node, cmd.Key, cmd.Metadata)
		return Output{Version: v, Err: err}
	case "GraphAddEdge":
		v, err := s.GraphAddEdge(cmd.Graph, cmd.Src, cmd.Dst, cmd.EdgeType, 1.0, cmd.Metadata)
		return Output{Version: v, Err: err}

	default:
		return Output{Err: strataerr.New(strataerr.KindInvalidInput, "unknown command: "+cmd.Op)}
	}
}
