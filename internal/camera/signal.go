package camera

import "fmt"

// SignalKind enumerates lifecycle and hardware notifications.
type SignalKind int

const (
	// SignalBackground means the host went to the background.
	SignalBackground SignalKind = iota
	// SignalForeground means the host came back.
	SignalForeground
	// SignalInterruptionBegan means the hardware was taken away (device busy, system pressure).
	SignalInterruptionBegan
	// SignalInterruptionEnded means the hardware is available again.
	SignalInterruptionEnded
	// SignalRuntimeError reports an asynchronous capture failure.
	SignalRuntimeError
)

func (k SignalKind) String() string {
	switch k {
	case SignalBackground:
		return "background"
	case SignalForeground:
		return "foreground"
	case SignalInterruptionBegan:
		return "interruption_began"
	case SignalInterruptionEnded:
		return "interruption_ended"
	case SignalRuntimeError:
		return "runtime_error"
	default:
		return fmt.Sprintf("signal(%d)", int(k))
	}
}

// Signal is one lifecycle notification. Err carries the reason of an
// interruption or runtime error.
type Signal struct {
	Kind SignalKind
	Err  error
}

func Background() Signal { return Signal{Kind: SignalBackground} }
func Foreground() Signal { return Signal{Kind: SignalForeground} }

// InterruptionBegan builds an interruption signal. A nil reason is treated as device contention.
func InterruptionBegan(reason error) Signal {
	return Signal{Kind: SignalInterruptionBegan, Err: reason}
}

func InterruptionEnded() Signal { return Signal{Kind: SignalInterruptionEnded} }

func RuntimeError(err error) Signal { return Signal{Kind: SignalRuntimeError, Err: err} }
