package mountlock

import "golang.org/x/sys/unix"

// blockSignals blocks every signal except SIGTRAP and SIGALRM while
// the lock is held, saving the prior mask into old.
func blockSignals(old *unix.Sigset_t) error {
	var all unix.Sigset_t
	unix.SigFillSet(&all)
	unix.SigDelSet(&all, unix.SIGTRAP)
	unix.SigDelSet(&all, unix.SIGALRM)
	return unix.Sigprocmask(unix.SIG_BLOCK, &all, old)
}

// restoreSignals restores a mask previously saved by blockSignals.
func restoreSignals(old *unix.Sigset_t) {
	_ = unix.Sigprocmask(unix.SIG_SETMASK, old, nil)
}
