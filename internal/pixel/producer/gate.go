package producer

// Gate is the readiness state of a producer. It leaves GateUninitialized
// exactly once, during New, and never changes afterwards.
type Gate int

const (
	GateUninitialized Gate = iota
	GateReady
	GateNotReady
)

func (g Gate) String() string {
	switch g {
	case GateUninitialized:
		return "uninitialized"
	case GateReady:
		return "ready"
	case GateNotReady:
		return "not-ready"
	default:
		return "unknown"
	}
}
