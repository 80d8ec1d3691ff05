package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/yashUcr773/task-management-app-sub001/config"
)

var errDialRefused = errors.New("connection refused")

// fakeTransport delivers pushed frames and records writes.
type fakeTransport struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	readErr  error
	messages [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.frames:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// drop simulates the server going away with err.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.Close()
}

func (f *fakeTransport) push(frame string) {
	f.frames <- []byte(frame)
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

// lateTransport keeps delivering frames after Close, like a socket whose
// buffered data is read after the local side gave up on it.
type lateTransport struct {
	frames chan []byte
}

func newLateTransport() *lateTransport {
	return &lateTransport{frames: make(chan []byte, 1)}
}

func (l *lateTransport) ReadMessage() (int, []byte, error) {
	data, ok := <-l.frames
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	return websocket.TextMessage, data, nil
}

func (l *lateTransport) WriteMessage(int, []byte) error { return nil }
func (l *lateTransport) Close() error                   { return nil }

type dialerFunc func(ctx context.Context, rawURL string) (Transport, error)

func (f dialerFunc) Dial(ctx context.Context, rawURL string) (Transport, error) { return f(ctx, rawURL) }

// fakeDialer returns scripted results in order; once the script runs out
// every dial fails.
type fakeDialer struct {
	mu     sync.Mutex
	script []*fakeTransport
	urls   []string
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, rawURL)
	if len(d.script) == 0 {
		return nil, errDialRefused
	}
	next := d.script[0]
	d.script = d.script[1:]
	if next == nil {
		return nil, errDialRefused
	}
	return next, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

type fakeTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire runs the callback the way an expired timer would.
func (t *fakeTimer) fire() {
	t.fn()
}

// fakeClock hands scheduled timers to the test instead of running them.
type fakeClock struct {
	scheduled chan *fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{scheduled: make(chan *fakeTimer, 16)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	c.scheduled <- t
	return t
}

func (c *fakeClock) next(t *testing.T) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		return tm
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect scheduled")
		return nil
	}
}

func (c *fakeClock) expectNone(t *testing.T) {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		t.Fatalf("unexpected reconnect scheduled after %s", tm.delay)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingNotifier struct {
	connected chan struct{}
	errs      chan error
	failed    chan int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		connected: make(chan struct{}, 16),
		errs:      make(chan error, 16),
		failed:    make(chan int, 16),
	}
}

func (n *recordingNotifier) Connected()                    { n.connected <- struct{}{} }
func (n *recordingNotifier) TransientError(err error)      { n.errs <- err }
func (n *recordingNotifier) PermanentFailure(attempts int) { n.failed <- attempts }

func newTestManager(t *testing.T, dialer *fakeDialer) (*Manager, *fakeClock, *recordingNotifier) {
	t.Helper()
	clock := newFakeClock()
	notifier := newRecordingNotifier()
	cfg := &config.ClientConfig{URL: "ws://realtime.test/ws", MaxAttempts: 5, BaseDelay: time.Second}
	m := NewManager(cfg, zerolog.Nop(), WithDialer(dialer), WithClock(clock), WithNotifier(notifier))
	t.Cleanup(m.Disconnect)
	return m, clock, notifier
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, 2*time.Second, 5*time.Millisecond,
		"state never became %s", want)
}
