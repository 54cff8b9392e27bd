package events

// Event is any structured state change the ledger engines emit. EventType
// identifies the change for routing; payloads live on the concrete type.
type Event interface {
	EventType() string
}

// Emitter receives engine events. The node installs one that feeds the
// audit log; RPC and websocket consumers hang off that.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards everything. Engines fall back to it when no emitter
// has been installed, so emission is always safe to call.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
