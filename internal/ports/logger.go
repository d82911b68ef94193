package ports

import "github.com/bft-labs/spanship/pkg/log"

// Logger is the logging port. It is the public pkg/log interface so that
// hosts can pass their own implementation straight through.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for adapters.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Uint64   = log.Uint64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
