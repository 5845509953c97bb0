package errcode

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidConfig Code = "invalid_config" // value rejected before any register write
	InUse         Code = "in_use"         // resource already owned
	WrongPin      Code = "wrong_pin"      // pin not wired to the requested function
	ModeMismatch  Code = "mode_mismatch"  // hardware state has no matching clock mode
	Consumed      Code = "consumed"       // capability already spent by a transition
	UnknownUnit   Code = "unknown_unit"
	UnknownPort   Code = "unknown_port"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	Timeout       Code = "timeout"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and a message.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

// New builds an *E. Msg is optional.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.InUse) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
