package provision

import "fmt"

// State is a step of a provisioning run. A run only moves forward; any failure aborts it.
type State int

const (
	StateStart State = iota
	StateRootKeyGenerated
	StateRootCertBuilt
	StateRootCertSigned
	StateHostKeyGenerated
	StateHostCertBuilt
	StateHostCertSigned
	StateExported
	StateEncoded
	StatePersisted
	StateDone
)

var stateNames = [...]string{
	StateStart:            "Start",
	StateRootKeyGenerated: "RootKeyGenerated",
	StateRootCertBuilt:    "RootCertBuilt",
	StateRootCertSigned:   "RootCertSigned",
	StateHostKeyGenerated: "HostKeyGenerated",
	StateHostCertBuilt:    "HostCertBuilt",
	StateHostCertSigned:   "HostCertSigned",
	StateExported:         "Exported",
	StateEncoded:          "Encoded",
	StatePersisted:        "Persisted",
	StateDone:             "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StageError records the state a failed run was trying to reach.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
