package twiliotest

import "testing"

// AssertSent fails t unless at least one recorded message matches.
func (f *Fake) AssertSent(t testing.TB, match func(RecordedMessage) bool) bool {
	t.Helper()
	for _, message := range f.Messages() {
		if match == nil || match(message) {
			return true
		}
	}
	t.Errorf("twiliotest: expected a matching message, none of %d recorded matched", len(f.Messages()))
	return false
}

func (f *Fake) AssertSentTo(t testing.TB, to string) bool {
	t.Helper()
	for _, message := range f.Messages() {
		if message.To == to {
			return true
		}
	}
	t.Errorf("twiliotest: expected a message to %q", to)
	return false
}

func (f *Fake) AssertSentCount(t testing.TB, count int) bool {
	t.Helper()
	if got := len(f.Messages()); got != count {
		t.Errorf("twiliotest: expected %d messages, got %d", count, got)
		return false
	}
	return true
}

func (f *Fake) AssertNothingSent(t testing.TB) bool {
	t.Helper()
	if got := len(f.Messages()); got != 0 {
		t.Errorf("twiliotest: expected no messages, got %d", got)
		return false
	}
	return true
}

func (f *Fake) AssertCallMade(t testing.TB, match func(RecordedCall) bool) bool {
	t.Helper()
	for _, call := range f.Calls() {
		if match == nil || match(call) {
			return true
		}
	}
	t.Errorf("twiliotest: expected a matching call, none of %d recorded matched", len(f.Calls()))
	return false
}

func (f *Fake) AssertCalledTo(t testing.TB, to string) bool {
	t.Helper()
	for _, call := range f.Calls() {
		if call.To == to {
			return true
		}
	}
	t.Errorf("twiliotest: expected a call to %q", to)
	return false
}

func (f *Fake) AssertCallCount(t testing.TB, count int) bool {
	t.Helper()
	if got := len(f.Calls()); got != count {
		t.Errorf("twiliotest: expected %d calls, got %d", count, got)
		return false
	}
	return true
}

func (f *Fake) AssertNoCalls(t testing.TB) bool {
	t.Helper()
	if got := len(f.Calls()); got != 0 {
		t.Errorf("twiliotest: expected no calls, got %d", got)
		return false
	}
	return true
}
