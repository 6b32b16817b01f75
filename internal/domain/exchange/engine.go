package exchange

import "context"

// Engine is the protocol runtime the bridge drives. One call handles one
// complete exchange: the engine reads the body from src, and emits output
// events into acc, ending with the completion marker. Implementations must
// honor ctx cancellation on a best-effort basis.
type Engine interface {
	HandleExchange(ctx context.Context, scope *Scope, src *BodySource, acc *Accumulator) error
}
