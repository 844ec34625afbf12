package nominal

import "fmt"

// runtimeError latches the VM's single error flag/message pair (spec
// §7) and also returns it as a Go error so a dispatch handler can
// propagate it up through step/runLoop in the usual idiomatic way.
func (s *State) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	s.errFlag = true
	s.errMsg = msg
	return fmt.Errorf("%s", msg)
}

// HasError reports whether an error is currently latched.
func (s *State) HasError() bool { return s.errFlag }

// LastError returns the latched error message and clears the flag, the
// same read-clears-it discipline the teacher's own `vm.errcode` field
// follows.
func (s *State) LastError() string {
	msg := s.errMsg
	s.errFlag = false
	s.errMsg = ""
	return msg
}
