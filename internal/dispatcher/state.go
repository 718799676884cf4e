package dispatcher

// State is the position of a worker in its channel lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateAwaitAck
	StateListening
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitAck:
		return "await_ack"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
