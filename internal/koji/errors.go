package koji

import (
	"errors"
	"fmt"
)

// ErrLogin is returned when the hub rejects or cannot complete a login.
var ErrLogin = errors.New("koji login failed")

// faultClasses names the hub's fault codes.
var faultClasses = map[int]string{
	1000: "GenericError",
	1001: "LockError",
	1002: "AuthError",
	1003: "TagError",
	1004: "ActionNotAllowed",
	1005: "BuildError",
	1006: "AuthLockError",
	1007: "AuthExpired",
	1008: "SequenceError",
	1009: "RetryError",
	1010: "PreBuildError",
	1011: "PostBuildError",
	1012: "BuildrootError",
	1013: "FunctionDeprecated",
	1014: "ServerOffline",
	1019: "ParameterError",
	1020: "ImportError",
	1021: "ConfigurationError",
}

// Fault is an XML-RPC fault raised by the hub.
type Fault struct {
	Code    int
	Message string
}

// Class returns the hub's name for the fault.
func (f *Fault) Class() string {
	if name, ok := faultClasses[f.Code]; ok {
		return name
	}
	return "Fault"
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Class(), f.Message)
}
