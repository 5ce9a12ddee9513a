package slp

// State is a step of the status exchange. Failed is absorbing and reachable
// from every state before Done.
type State int

const (
	Connecting State = iota
	HandshakeSent
	AwaitingResponseLength
	AwaitingResponseBody
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case HandshakeSent:
		return "handshake sent"
	case AwaitingResponseLength:
		return "awaiting response length"
	case AwaitingResponseBody:
		return "awaiting response body"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
