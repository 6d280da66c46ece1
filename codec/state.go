package codec

// StreamState is the per-stream state machine shared by every Codec
// variant (spec.md §4.2):
//
//	IDLE -> OPEN (headers received)
//	     -> HALF_CLOSED_REMOTE (EOM ingress) / HALF_CLOSED_LOCAL (EOM egress)
//	     -> CLOSED
//
// Either side may transition directly to CLOSED via RST_STREAM.
type StreamState int

const (
	StateIdle StreamState = iota
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpen:
		return "OPEN"
	case StateHalfClosedLocal:
		return "HALF_CLOSED_LOCAL"
	case StateHalfClosedRemote:
		return "HALF_CLOSED_REMOTE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// OnEgressEOM returns the state reached after this side sends EOM (end of
// message) on a stream currently in s.
func (s StreamState) OnEgressEOM() StreamState {
	switch s {
	case StateOpen:
		return StateHalfClosedLocal
	case StateHalfClosedRemote:
		return StateClosed
	default:
		return s
	}
}

// OnIngressEOM returns the state reached after the peer sends EOM on a
// stream currently in s.
func (s StreamState) OnIngressEOM() StreamState {
	switch s {
	case StateOpen:
		return StateHalfClosedRemote
	case StateHalfClosedLocal:
		return StateClosed
	default:
		return s
	}
}
