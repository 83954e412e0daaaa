package device

import "time"

// Call records a single command issued to the mock.
type Call struct {
	Name   string
	Source string
	Pos    time.Duration
	Volume float64
}

// Mock is a test double for the playback resource. It records every command
// and lets tests emit device events. Commands never call the listener back
// synchronously; tests drive confirmations explicitly, matching the
// asynchronous behaviour of a real device.
type Mock struct {
	listener Listener
	calls    []Call
}

// NewMock creates a mock device.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Load(source string) {
	m.calls = append(m.calls, Call{Name: "load", Source: source})
}

func (m *Mock) Play() {
	m.calls = append(m.calls, Call{Name: "play"})
}

func (m *Mock) Pause() {
	m.calls = append(m.calls, Call{Name: "pause"})
}

func (m *Mock) SetPosition(pos time.Duration) {
	m.calls = append(m.calls, Call{Name: "set_position", Pos: pos})
}

func (m *Mock) SetVolume(volume float64) {
	m.calls = append(m.calls, Call{Name: "set_volume", Volume: volume})
}

func (m *Mock) SetListener(l Listener) {
	m.listener = l
}

// Calls returns every recorded command in order.
func (m *Mock) Calls() []Call {
	return m.calls
}

// CallNames returns the names of recorded commands in order.
func (m *Mock) CallNames() []string {
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.Name
	}
	return names
}

// CountCalls returns how many commands with the given name were issued.
func (m *Mock) CountCalls(name string) int {
	n := 0
	for _, c := range m.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// LastCall returns the most recent command with the given name, or nil.
func (m *Mock) LastCall(name string) *Call {
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Name == name {
			return &m.calls[i]
		}
	}
	return nil
}

// Reset clears the recorded commands.
func (m *Mock) Reset() {
	m.calls = nil
}

// Event emitters used by tests to simulate the device.

func (m *Mock) EmitTimeUpdate(pos time.Duration) {
	if m.listener != nil {
		m.listener.OnTimeUpdate(pos)
	}
}

func (m *Mock) EmitDurationChange(d time.Duration) {
	if m.listener != nil {
		m.listener.OnDurationChange(d)
	}
}

func (m *Mock) EmitPlay() {
	if m.listener != nil {
		m.listener.OnPlay()
	}
}

func (m *Mock) EmitPause() {
	if m.listener != nil {
		m.listener.OnPause()
	}
}

func (m *Mock) EmitEnded() {
	if m.listener != nil {
		m.listener.OnEnded()
	}
}

func (m *Mock) EmitPlayError(err error) {
	if m.listener != nil {
		m.listener.OnPlayError(err)
	}
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
