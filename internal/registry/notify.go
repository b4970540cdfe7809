package registry

import "golang.org/x/sys/unix"

// newPIDEventPath is a fixed, never-created path used purely as a tag for
// notifyNewPID's side-channel access(2) call.
const newPIDEventPath = "metric-collector-new-pid"

// notifyNewPID announces that pid has just been registered by calling
// access(2) against a fixed nonexistent path with pid packed into the mode
// argument. The call itself always fails with EINVAL or ENOENT and the
// error is discarded: the access() is the message, observable by an
// external tracer attached to the syscall, not a permission check.
func notifyNewPID(pid int) {
	_ = unix.Access(newPIDEventPath, uint32(pid))
}
