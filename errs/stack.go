package errs

// Stack accumulates diagnostic records in call order. spec §4.6/§7
// describe a process-wide, thread-local version of this; §9's design
// notes prefer an explicit error-value return and say to reserve the
// thread-local only if call-site ergonomics demand it. This module
// takes that advice: a Stack is owned explicitly by the Txn that plays
// the role of "the thread" for its lifetime, rather than being looked
// up through goroutine-local magic.
type Stack struct {
	records []*Error
}

// AssertEmpty panics if the stack is non-empty. spec's entry points
// assert the channel is empty on entry; a non-empty stack at that
// point means a caller failed to Drain a previous failure, which is a
// caller bug, not a runtime condition to recover from.
func (s *Stack) AssertEmpty() {
	if len(s.records) != 0 {
		panic("errs: stack not drained before next operation")
	}
}

// Push records a diagnostic. It has no return value and does not
// replace returning the error — callers return the *Error themselves; Push exists purely for the
// accumulation side channel.
func (s *Stack) Push(err *Error) {
	s.records = append(s.records, err)
}

// Drain returns and clears all accumulated records, in push order.
func (s *Stack) Drain() []*Error {
	out := s.records
	s.records = nil
	return out
}

// Empty reports whether the stack currently holds no records.
func (s *Stack) Empty() bool { return len(s.records) == 0 }
