package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wirelink/internal/testutil/testlog"
	"github.com/danmuck/wirelink/internal/wire"
)

// fakeStream is a scriptable duplex stream. Reads block until a chunk is
// fed or the stream closes; writes can be held hostage after a given
// number of calls to exercise the timeout paths.
type fakeStream struct {
	readCh    chan []byte
	pending   []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	writes    []byte
	writeN    int
	holdAfter int // hold writes after this many calls, 0 disables
	release   chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		readCh:  make(chan []byte, 16),
		closed:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *fakeStream) feed(b []byte) {
	s.readCh <- b
}

func (s *fakeStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		select {
		case b := <-s.readCh:
			s.pending = b
		case <-s.closed:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.writeN++
	hold := s.holdAfter > 0 && s.writeN > s.holdAfter
	s.mu.Unlock()
	if hold {
		select {
		case <-s.release:
		case <-s.closed:
			return 0, io.ErrClosedPipe
		}
	}
	s.mu.Lock()
	s.writes = append(s.writes, p...)
	s.mu.Unlock()
	return len(p), nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

type fakeOpener struct {
	stream io.ReadWriteCloser
	err    error
	block  bool
}

func (o *fakeOpener) OpenStream(ctx context.Context) (io.ReadWriteCloser, HandshakeReport, error) {
	if o.block {
		<-ctx.Done()
		return nil, HandshakeReport{}, ctx.Err()
	}
	if o.err != nil {
		return nil, HandshakeReport{}, o.err
	}
	return o.stream, HandshakeReport{RemoteHost: "fakehost", AddressFamily: "tcp4", ProtocolLabel: "fake"}, nil
}

// testNote is the application message used across transport tests.
type testNote struct {
	Text string
}

func (*testNote) TypeCode() uint64 { return 20 }

func (m *testNote) MarshalTagged(e *wire.Encoder) {
	e.Str(1, m.Text)
}

func (m *testNote) UnmarshalTagged(d *wire.Decoder) error {
	for {
		id, err := d.NextMember()
		if err != nil {
			return err
		}
		switch id {
		case 0:
			return nil
		case 1:
			m.Text, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

func testRegistry() *wire.Registry {
	reg := NewRegistry()
	reg.Register(20, func() wire.Message { return &testNote{} }, nil)
	return reg
}

func testConfig() Config {
	return Config{
		ConnectTimeout:         2 * time.Second,
		HeaderReadTimeout:      2 * time.Second,
		ReadTimeout:            2 * time.Second,
		WriteTimeout:           2 * time.Second,
		WarnAfterReadDuration:  time.Minute,
		WarnAfterWriteDuration: time.Minute,
		WriteKeepaliveInterval: time.Minute,
		GameMagic:              "GAME",
		ClientVersion:          "1.2.3",
		FullProtocolHash:       []byte{0xAA, 0xBB},
	}
}

func preambleBytes(t *testing.T, status wire.ProtocolStatus, magic string) []byte {
	t.Helper()
	b, err := wire.EncodeProtocolHeader(status, magic)
	if err != nil {
		t.Fatalf("encode preamble: %v", err)
	}
	return b
}

func packetBytes(t *testing.T, pt wire.PacketType, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, wire.PacketHeaderLen+len(payload))
	hdr := wire.PacketHeader{Type: pt, Compression: wire.CompressionNone, PayloadSize: len(payload)}
	if err := wire.EncodePacketHeader(hdr, buf, true); err != nil {
		t.Fatalf("encode packet header: %v", err)
	}
	copy(buf[wire.PacketHeaderLen:], payload)
	return buf
}

func messagePacket(t *testing.T, msg wire.Message) []byte {
	t.Helper()
	w := wire.NewWriter(64)
	wire.EncodeMessage(w, msg)
	return packetBytes(t, wire.PacketMessage, w.Bytes())
}

func serverHelloPacket(t *testing.T) []byte {
	t.Helper()
	return messagePacket(t, &ServerHello{
		ServerVersion:    "srv-9",
		BuildNumber:      42,
		FullProtocolHash: []byte{0xAA, 0xBB},
		CommitID:         "abc123",
	})
}

func nextEvent(t *testing.T, tr *StreamTransport, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-tr.Events():
		return ev, ok
	case <-time.After(timeout):
		t.Fatalf("no event within %s", timeout)
		return nil, false
	}
}

// awaitConnected skips info events and fails on anything but the
// ConnectedEvent.
func awaitConnected(t *testing.T, tr *StreamTransport) ConnectedEvent {
	t.Helper()
	for {
		ev, ok := nextEvent(t, tr, 3*time.Second)
		if !ok {
			t.Fatalf("event channel closed before connect")
		}
		switch e := ev.(type) {
		case ConnectedEvent:
			return e
		case InfoEvent:
		default:
			t.Fatalf("unexpected event before connect: %#v", ev)
		}
	}
}

// awaitTerminal drains events until the channel closes and returns the
// terminal error, or nil when the transport was disposed silently.
func awaitTerminal(t *testing.T, tr *StreamTransport, timeout time.Duration) error {
	t.Helper()
	deadline := time.After(timeout)
	var terminal error
	for {
		select {
		case ev, ok := <-tr.Events():
			if !ok {
				return terminal
			}
			if e, isErr := ev.(ErrorEvent); isErr {
				if terminal != nil {
					t.Fatalf("second terminal event: %v after %v", e.Err, terminal)
				}
				terminal = e.Err
			}
		case <-deadline:
			t.Fatalf("no terminal event within %s", timeout)
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

type sentPacket struct {
	hdr wire.PacketHeader
	msg wire.Message
}

// parseWrites decodes the packets the client has written so far. Writes
// are whole packets, so a snapshot always parses cleanly.
func parseWrites(t *testing.T, data []byte, reg *wire.Registry) []sentPacket {
	t.Helper()
	var out []sentPacket
	off := 0
	for off < len(data) {
		hdr, err := wire.DecodePacketHeader(data, off, true)
		if err != nil {
			t.Fatalf("parse written header at %d: %v", off, err)
		}
		p := sentPacket{hdr: hdr}
		if hdr.Type == wire.PacketMessage {
			msg, err := wire.DecodeMessage(data, off+wire.PacketHeaderLen, hdr.PayloadSize, reg)
			if err != nil {
				t.Fatalf("parse written message at %d: %v", off, err)
			}
			p.msg = msg
		}
		out = append(out, p)
		off += wire.PacketHeaderLen + hdr.PayloadSize
	}
	return out
}

// startConnected runs a transport through a successful handshake.
func startConnected(t *testing.T, cfg Config, stream *fakeStream, reg *wire.Registry) *StreamTransport {
	t.Helper()
	tr := New(cfg, &fakeOpener{stream: stream}, reg, zerolog.Nop())
	t.Cleanup(tr.Dispose)
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	stream.feed(preambleBytes(t, wire.StatusClusterRunning, "GAME"))
	stream.feed(serverHelloPacket(t))
	awaitConnected(t, tr)
	return tr
}

func TestConnectTimeout(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	tr := New(cfg, &fakeOpener{block: true}, testRegistry(), zerolog.Nop())
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	started := time.Now()
	err := awaitTerminal(t, tr, 2*time.Second)
	var timeoutErr *ConnectTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected ConnectTimeoutError, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("timeout fired after %s", elapsed)
	}
	if tr.State() != StateClosed {
		t.Fatalf("state after timeout: %s", tr.State())
	}
}

func TestConnectFailure(t *testing.T) {
	cause := errors.New("refused")
	tr := New(testConfig(), &fakeOpener{err: cause}, testRegistry(), zerolog.Nop())
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	err := awaitTerminal(t, tr, 2*time.Second)
	var closedErr *StreamClosedError
	if !errors.As(err, &closedErr) || !errors.Is(err, cause) {
		t.Fatalf("expected StreamClosedError wrapping cause, got %v", err)
	}
}

func TestOpenIsOneShot(t *testing.T) {
	stream := newFakeStream()
	tr := startConnected(t, testConfig(), stream, testRegistry())
	if err := tr.Open(); !errors.Is(err, ErrAlreadyOpened) {
		t.Fatalf("expected ErrAlreadyOpened, got %v", err)
	}
}

func TestHeaderReadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.HeaderReadTimeout = 200 * time.Millisecond
	tr := New(cfg, &fakeOpener{stream: newFakeStream()}, testRegistry(), zerolog.Nop())
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	err := awaitTerminal(t, tr, 2*time.Second)
	var timeoutErr *HeaderTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected HeaderTimeoutError, got %v", err)
	}
}

func TestHandshakeRejectsWrongGameMagic(t *testing.T) {
	stream := newFakeStream()
	tr := New(testConfig(), &fakeOpener{stream: stream}, testRegistry(), zerolog.Nop())
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	stream.feed(preambleBytes(t, wire.StatusClusterRunning, "EVIL"))
	err := awaitTerminal(t, tr, 2*time.Second)
	var violation *ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
}

func TestHandshakeRejectsClusterNotRunning(t *testing.T) {
	stream := newFakeStream()
	tr := New(testConfig(), &fakeOpener{stream: stream}, testRegistry(), zerolog.Nop())
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	stream.feed(preambleBytes(t, wire.StatusInMaintenance, "GAME"))
	err := awaitTerminal(t, tr, 2*time.Second)
	var violation *ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
}

func TestConnectHandshakeReceive(t *testing.T) {
	testlog.Start(t)
	stream := newFakeStream()
	reg := testRegistry()
	tr := New(testConfig(), &fakeOpener{stream: stream}, reg, zerolog.Nop())
	t.Cleanup(tr.Dispose)
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	stream.feed(preambleBytes(t, wire.StatusClusterRunning, "GAME"))
	stream.feed(serverHelloPacket(t))

	connected := awaitConnected(t, tr)
	if connected.Hello == nil || connected.Hello.ServerVersion != "srv-9" || connected.Hello.BuildNumber != 42 {
		t.Fatalf("hello: %+v", connected.Hello)
	}
	if connected.Report.RemoteHost != "fakehost" || connected.Report.AddressFamily != "tcp4" {
		t.Fatalf("report: %+v", connected.Report)
	}
	if tr.State() != StateConnected {
		t.Fatalf("state after connect: %s", tr.State())
	}

	// the client's first write must be its ClientHello
	waitFor(t, 2*time.Second, "client hello written", func() bool {
		return len(stream.written()) >= wire.PacketHeaderLen
	})
	sent := parseWrites(t, stream.written(), reg)
	hello, ok := sent[0].msg.(*ClientHello)
	if !ok {
		t.Fatalf("first written packet: %+v", sent[0])
	}
	if hello.ClientVersion != "1.2.3" {
		t.Fatalf("client hello: %+v", hello)
	}

	stream.feed(messagePacket(t, &testNote{Text: "hi"}))
	ev, ok := nextEvent(t, tr, 2*time.Second)
	if !ok {
		t.Fatalf("event channel closed")
	}
	recv, ok := ev.(ReceivedEvent)
	if !ok {
		t.Fatalf("expected ReceivedEvent, got %#v", ev)
	}
	note, ok := recv.Msg.(*testNote)
	if !ok || note.Text != "hi" {
		t.Fatalf("received message: %#v", recv.Msg)
	}
}

func TestReceiveOrderPreserved(t *testing.T) {
	stream := newFakeStream()
	reg := testRegistry()
	tr := startConnected(t, testConfig(), stream, reg)

	texts := []string{"one", "two", "three", "four"}
	var buf []byte
	for _, s := range texts {
		buf = append(buf, messagePacket(t, &testNote{Text: s})...)
	}
	stream.feed(buf)

	for _, want := range texts {
		ev, ok := nextEvent(t, tr, 2*time.Second)
		if !ok {
			t.Fatalf("event channel closed at %q", want)
		}
		recv, isRecv := ev.(ReceivedEvent)
		if !isRecv {
			t.Fatalf("expected ReceivedEvent, got %#v", ev)
		}
		if got := recv.Msg.(*testNote).Text; got != want {
			t.Fatalf("out of order: got %q want %q", got, want)
		}
	}
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	stream := newFakeStream()
	reg := testRegistry()
	startConnected(t, testConfig(), stream, reg)

	stream.feed(packetBytes(t, wire.PacketPing, nil))
	waitFor(t, 2*time.Second, "pong written", func() bool {
		for _, p := range parseWrites(t, stream.written(), reg) {
			if p.hdr.Type == wire.PacketPong {
				return true
			}
		}
		return false
	})
}

func TestSessionStatusSurfacesAsInfo(t *testing.T) {
	stream := newFakeStream()
	tr := startConnected(t, testConfig(), stream, testRegistry())

	w := wire.NewWriter(4)
	w.WriteVarUint(3)
	stream.feed(packetBytes(t, wire.PacketSessionStatus, w.Bytes()))

	for {
		ev, ok := nextEvent(t, tr, 2*time.Second)
		if !ok {
			t.Fatalf("event channel closed before status info")
		}
		info, isInfo := ev.(InfoEvent)
		if !isInfo {
			t.Fatalf("unexpected event: %#v", ev)
		}
		if status, isStatus := info.Info.(SessionStatusInfo); isStatus {
			if status.Code != 3 {
				t.Fatalf("status code: %d", status.Code)
			}
			return
		}
	}
}

func TestGarbagePacketIsTerminal(t *testing.T) {
	stream := newFakeStream()
	tr := startConnected(t, testConfig(), stream, testRegistry())

	stream.feed(packetBytes(t, wire.PacketMessage, []byte{0x7F, 0x01, 0x02}))
	err := awaitTerminal(t, tr, 2*time.Second)
	var violation *ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
}

func TestWriteTimeout(t *testing.T) {
	stream := newFakeStream()
	stream.holdAfter = 1 // let the ClientHello through, hold everything after
	cfg := testConfig()
	cfg.WriteTimeout = 300 * time.Millisecond
	tr := startConnected(t, cfg, stream, testRegistry())

	tr.EnqueueSendMessage(&testNote{Text: "stuck"})
	err := awaitTerminal(t, tr, 2*time.Second)
	var timeoutErr *WriteTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected WriteTimeoutError, got %v", err)
	}
	if timeoutErr.Timeout != cfg.WriteTimeout {
		t.Fatalf("timeout value: %s", timeoutErr.Timeout)
	}
}

func TestKeepalivePings(t *testing.T) {
	stream := newFakeStream()
	reg := testRegistry()
	cfg := testConfig()
	cfg.WriteKeepaliveInterval = 100 * time.Millisecond
	startConnected(t, cfg, stream, reg)

	waitFor(t, 2*time.Second, "two keepalive pings", func() bool {
		pings := 0
		for _, p := range parseWrites(t, stream.written(), reg) {
			if p.hdr.Type == wire.PacketPing {
				pings++
			}
		}
		return pings >= 2
	})
}

func TestKeepaliveEmitsDiagnostics(t *testing.T) {
	stream := newFakeStream()
	cfg := testConfig()
	cfg.WriteKeepaliveInterval = 100 * time.Millisecond
	tr := startConnected(t, cfg, stream, testRegistry())

	for {
		ev, ok := nextEvent(t, tr, 3*time.Second)
		if !ok {
			t.Fatalf("event channel closed before diagnostics")
		}
		info, isInfo := ev.(InfoEvent)
		if !isInfo {
			t.Fatalf("unexpected event: %#v", ev)
		}
		diag, isDiag := info.Info.(DiagnosticInfo)
		if !isDiag {
			continue
		}
		if diag.State != StateConnected {
			t.Fatalf("diagnostic state: %s", diag.State)
		}
		if diag.SentPackets == 0 {
			t.Fatalf("diagnostic sent counter is zero")
		}
		if diag.QueueDepth != 0 {
			t.Fatalf("queue depth with drained queue: %d", diag.QueueDepth)
		}
		return
	}
}

func TestEnqueueCloseFlushesPendingMessages(t *testing.T) {
	testlog.Start(t)
	stream := newFakeStream()
	reg := testRegistry()
	tr := startConnected(t, testConfig(), stream, reg)

	texts := []string{"a", "b", "c"}
	for _, s := range texts {
		tr.EnqueueSendMessage(&testNote{Text: s})
	}
	payload := &struct{ tag string }{tag: "bye"}
	tr.EnqueueClose(payload)

	err := awaitTerminal(t, tr, 2*time.Second)
	var closeErr *EnqueuedCloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected EnqueuedCloseError, got %v", err)
	}
	if closeErr.Payload != any(payload) {
		t.Fatalf("close payload: %#v", closeErr.Payload)
	}

	var sent []string
	for _, p := range parseWrites(t, stream.written(), reg) {
		if note, ok := p.msg.(*testNote); ok {
			sent = append(sent, note.Text)
		}
	}
	if len(sent) != len(texts) {
		t.Fatalf("flushed %d of %d messages: %v", len(sent), len(texts), sent)
	}
	for i, want := range texts {
		if sent[i] != want {
			t.Fatalf("flush order: got %v want %v", sent, texts)
		}
	}
}

func TestMessagesAfterCloseAreDropped(t *testing.T) {
	stream := newFakeStream()
	reg := testRegistry()
	tr := startConnected(t, testConfig(), stream, reg)

	tr.EnqueueClose(nil)
	tr.EnqueueSendMessage(&testNote{Text: "late"})

	if err := awaitTerminal(t, tr, 2*time.Second); err == nil {
		t.Fatalf("expected terminal event")
	}
	for _, p := range parseWrites(t, stream.written(), reg) {
		if note, ok := p.msg.(*testNote); ok && note.Text == "late" {
			t.Fatalf("message enqueued after close was written")
		}
	}
}

func TestEnqueueCloseBeforeOpen(t *testing.T) {
	tr := New(testConfig(), &fakeOpener{block: true}, testRegistry(), zerolog.Nop())
	tr.EnqueueClose("bye")

	err := awaitTerminal(t, tr, 2*time.Second)
	var closeErr *EnqueuedCloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected EnqueuedCloseError, got %v", err)
	}
	if closeErr.Payload != "bye" {
		t.Fatalf("close payload: %#v", closeErr.Payload)
	}
	if err := tr.Open(); !errors.Is(err, ErrAlreadyOpened) {
		t.Fatalf("open after close: %v", err)
	}
}

func TestEnqueueCloseDuringHangingWrite(t *testing.T) {
	stream := newFakeStream()
	stream.holdAfter = 1
	reg := testRegistry()
	tr := startConnected(t, testConfig(), stream, reg)

	tr.EnqueueSendMessage(&testNote{Text: "slow"})
	time.Sleep(100 * time.Millisecond)
	tr.EnqueueClose("done")
	time.Sleep(100 * time.Millisecond)
	close(stream.release) // the stuck write unblocks before WriteTimeout

	err := awaitTerminal(t, tr, 2*time.Second)
	var closeErr *EnqueuedCloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected EnqueuedCloseError, got %v", err)
	}
	found := false
	for _, p := range parseWrites(t, stream.written(), reg) {
		if note, ok := p.msg.(*testNote); ok && note.Text == "slow" {
			found = true
		}
	}
	if !found {
		t.Fatalf("message enqueued before close was not written")
	}
}

func TestWriteTimeoutWinsOverPendingClose(t *testing.T) {
	stream := newFakeStream()
	stream.holdAfter = 1
	cfg := testConfig()
	cfg.WriteTimeout = 300 * time.Millisecond
	tr := startConnected(t, cfg, stream, testRegistry())

	tr.EnqueueSendMessage(&testNote{Text: "slow"})
	time.Sleep(100 * time.Millisecond)
	tr.EnqueueClose("late")
	// the stuck write is never released

	err := awaitTerminal(t, tr, 2*time.Second)
	var timeoutErr *WriteTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected WriteTimeoutError, got %v", err)
	}
	var closeErr *EnqueuedCloseError
	if errors.As(err, &closeErr) {
		t.Fatalf("pending close reported instead of the write timeout")
	}
}

func TestDisposeIsSilentAndIdempotent(t *testing.T) {
	stream := newFakeStream()
	tr := startConnected(t, testConfig(), stream, testRegistry())

	tr.Dispose()
	tr.Dispose()

	if err := awaitTerminal(t, tr, 2*time.Second); err != nil {
		t.Fatalf("dispose raised terminal event: %v", err)
	}
	if tr.State() != StateClosed {
		t.Fatalf("state after dispose: %s", tr.State())
	}
}

func TestDisposeReturnsWithFullEventBuffer(t *testing.T) {
	stream := newFakeStream()
	cfg := testConfig()
	cfg.EventBuffer = 2
	tr := startConnected(t, cfg, stream, testRegistry())

	// fill the buffer and leave the read pump stuck delivering, with
	// nobody draining Events()
	for i := 0; i < 6; i++ {
		stream.feed(messagePacket(t, &testNote{Text: "undrained"}))
	}
	time.Sleep(200 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Dispose()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispose blocked with a full event buffer")
	}

	if err := awaitTerminal(t, tr, 2*time.Second); err != nil {
		t.Fatalf("dispose raised terminal event: %v", err)
	}
	if tr.State() != StateClosed {
		t.Fatalf("state after dispose: %s", tr.State())
	}
}

func TestTerminalEventLandsWithFullEventBuffer(t *testing.T) {
	stream := newFakeStream()
	cfg := testConfig()
	cfg.EventBuffer = 2
	tr := startConnected(t, cfg, stream, testRegistry())

	stream.feed(messagePacket(t, &testNote{Text: "one"}))
	stream.feed(messagePacket(t, &testNote{Text: "two"}))
	stream.feed(packetBytes(t, wire.PacketMessage, []byte{0x7F, 0x01, 0x02}))
	time.Sleep(200 * time.Millisecond)

	err := awaitTerminal(t, tr, 2*time.Second)
	var violation *ProtocolViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
}

func TestReadDurationWarnings(t *testing.T) {
	stream := newFakeStream()
	cfg := testConfig()
	cfg.WarnAfterReadDuration = 100 * time.Millisecond
	tr := startConnected(t, cfg, stream, testRegistry())

	go func() {
		time.Sleep(300 * time.Millisecond)
		stream.feed(messagePacket(t, &testNote{Text: "finally"}))
	}()

	var sawBegin, sawEnd bool
	for {
		ev, ok := nextEvent(t, tr, 3*time.Second)
		if !ok {
			t.Fatalf("event channel closed before message")
		}
		switch e := ev.(type) {
		case InfoEvent:
			if warn, isWarn := e.Info.(DurationWarningInfo); isWarn && warn.Direction == DirectionRead {
				if warn.IsBegin {
					if warn.Elapsed < cfg.WarnAfterReadDuration {
						t.Fatalf("warn fired at %s", warn.Elapsed)
					}
					sawBegin = true
				} else {
					if !sawBegin {
						t.Fatalf("warning end before begin")
					}
					sawEnd = true
				}
			}
		case ReceivedEvent:
			if !sawBegin || !sawEnd {
				t.Fatalf("message delivered without warning pair: begin=%v end=%v", sawBegin, sawEnd)
			}
			return
		default:
			t.Fatalf("unexpected event: %#v", ev)
		}
	}
}

func TestServerEOFIsTerminal(t *testing.T) {
	stream := newFakeStream()
	tr := startConnected(t, testConfig(), stream, testRegistry())

	_ = stream.Close()
	err := awaitTerminal(t, tr, 2*time.Second)
	var closedErr *StreamClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("expected StreamClosedError, got %v", err)
	}
}
