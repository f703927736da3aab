package remote

import "fmt"

// Requirement states how an operation depends on a capability
type Requirement int

const (
	NotUsed Requirement = iota
	Optional
	Required
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return "not used"
	}
}

// Operation names a user-facing task
type Operation string

const (
	OpCmd           Operation = "cmd"
	OpClean         Operation = "clean"
	OpBuild         Operation = "build"
	OpAutoUpdateOn  Operation = "autoupdate_on"
	OpAutoUpdateOff Operation = "autoupdate_off"
	OpDeploy        Operation = "deploy"
)

// Capability lists what an operation needs from the execution context
type Capability struct {
	Remote Requirement
	Sudo   Requirement
}

var capabilities = map[Operation]Capability{
	OpCmd:           {Remote: Required, Sudo: Optional},
	OpClean:         {Remote: NotUsed, Sudo: NotUsed},
	OpBuild:         {Remote: NotUsed, Sudo: NotUsed},
	OpAutoUpdateOn:  {Remote: Required, Sudo: Required},
	OpAutoUpdateOff: {Remote: Required, Sudo: Required},
	OpDeploy:        {Remote: Required, Sudo: Required},
}

// Requirements returns the capability entry for op
func Requirements(op Operation) (Capability, bool) {
	c, ok := capabilities[op]
	return c, ok
}

// Check verifies that exec satisfies every requirement of op. A nil
// executor has neither a remote connection nor a sudo credential.
func Check(op Operation, exec Executor) error {
	c, ok := capabilities[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}

	remote := exec != nil && exec.Remote()
	if c.Remote == Required && !remote {
		return fmt.Errorf("%w: task requires remote connection", ErrPrecondition)
	}

	if c.Sudo == Required && (!remote || !exec.HasSudo()) {
		return fmt.Errorf("%w: task requires sudo password", ErrPrecondition)
	}

	return nil
}
