package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wirelink/internal/observability"
	"github.com/danmuck/wirelink/internal/wire"
)

// errLifetimeCanceled marks an operation interrupted by shutdown; it is
// never surfaced as a terminal error of its own.
var errLifetimeCanceled = errors.New("transport: lifetime canceled")

// StreamTransport is a duplex message transport over a byte stream. One
// read pump and one write pump run concurrently after the handshake; the
// send queue is the only shared mutable resource between the public API
// and the pumps. Exactly one terminal ErrorEvent fires per lifetime,
// after which the event channel is closed.
//
// The owner must drain Events until it closes.
type StreamTransport struct {
	cfg    Config
	opener Opener
	reg    *wire.Registry
	log    zerolog.Logger

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	state atomic.Int32
	queue *sendQueue

	events   chan Event
	evMu     sync.Mutex
	evClosed bool

	streamMu     sync.Mutex
	stream       io.ReadWriteCloser
	streamClosed bool

	closeOnce sync.Once

	sentPackets     atomic.Uint64
	receivedPackets atomic.Uint64
}

// New builds a transport in the Idle state. reg must have the handshake
// messages registered (see NewRegistry).
func New(cfg Config, opener Opener, reg *wire.Registry, log zerolog.Logger) *StreamTransport {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamTransport{
		cfg:        cfg,
		opener:     opener,
		reg:        reg,
		log:        log,
		lifeCtx:    ctx,
		lifeCancel: cancel,
		queue:      newSendQueue(),
		events:     make(chan Event, cfg.EventBuffer),
	}
}

// Events returns the ordered event channel. It is closed after the
// terminal event (or after Dispose with no terminal event).
func (t *StreamTransport) Events() <-chan Event {
	return t.events
}

func (t *StreamTransport) State() State {
	return State(t.state.Load())
}

// Open starts the connection attempt. One-shot: a second call (or a call
// after EnqueueClose/Dispose) returns ErrAlreadyOpened.
func (t *StreamTransport) Open() error {
	if !t.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrAlreadyOpened
	}
	t.log.Debug().Msg("transport opening")
	go t.run()
	return nil
}

// EnqueueSendMessage appends msg to the send queue. Safe from any
// goroutine; messages are written in FIFO enqueue order. Messages
// enqueued after a close request or after the terminal event are
// silently dropped.
func (t *StreamTransport) EnqueueSendMessage(msg wire.Message) {
	t.queue.push(queueItem{msg: msg})
}

// EnqueueClose requests an orderly shutdown. Messages enqueued before
// the request are flushed before teardown; the terminal event is an
// EnqueuedCloseError carrying payload. Legal before Open, in which case
// the terminal event fires immediately since nothing is in flight.
func (t *StreamTransport) EnqueueClose(payload any) {
	if t.state.CompareAndSwap(int32(StateIdle), int32(StateClosing)) {
		t.shutdown(&EnqueuedCloseError{Payload: payload})
		return
	}
	t.queue.push(queueItem{isClose: true, closePayload: payload})
}

// Dispose releases the stream and timers without raising a terminal
// event. Idempotent; safe from any state and concurrently with in-flight
// operations.
func (t *StreamTransport) Dispose() {
	t.shutdown(nil)
}

// run is the connection goroutine: connect, handshake, then pumps.
func (t *StreamTransport) run() {
	stream, report, ok := t.connect()
	if !ok {
		return
	}
	if !t.setStream(stream) {
		// disposed while the factory was completing
		_ = stream.Close()
		return
	}

	t.setState(StateHandshaking)
	hello, ok := t.handshake()
	if !ok {
		return
	}

	t.emit(ConnectedEvent{Hello: hello, Report: report})
	t.setState(StateConnected)
	t.log.Debug().Str("server_version", hello.ServerVersion).Str("remote", report.RemoteHost).
		Msg("transport connected")

	go t.readPump()
	t.writePump()
}

type openResult struct {
	stream io.ReadWriteCloser
	report HandshakeReport
	err    error
}

func (t *StreamTransport) connect() (io.ReadWriteCloser, HandshakeReport, bool) {
	started := time.Now()
	resCh := make(chan openResult, 1)
	go func() {
		s, rep, err := t.opener.OpenStream(t.lifeCtx)
		resCh <- openResult{stream: s, report: rep, err: err}
	}()

	timer := time.NewTimer(t.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			t.shutdown(&StreamClosedError{Cause: res.err})
			return nil, HandshakeReport{}, false
		}
		observability.RecordConnect(time.Since(started))
		return res.stream, res.report, true

	case <-timer.C:
		// The factory is abandoned fire-and-forget; if it ever completes,
		// its stream is closed unused.
		go discardOpenResult(resCh)
		t.shutdown(&ConnectTimeoutError{Timeout: t.cfg.ConnectTimeout})
		return nil, HandshakeReport{}, false

	case <-t.lifeCtx.Done():
		go discardOpenResult(resCh)
		t.shutdown(nil)
		return nil, HandshakeReport{}, false
	}
}

func discardOpenResult(resCh <-chan openResult) {
	if res := <-resCh; res.stream != nil {
		_ = res.stream.Close()
	}
}

// handshake reads the preamble and ServerHello and sends ClientHello.
// Returns ok=false after firing the terminal error.
func (t *StreamTransport) handshake() (*ServerHello, bool) {
	preamble := make([]byte, wire.ProtocolHeaderLen)
	if err := t.timedRead(preamble, t.cfg.HeaderReadTimeout, 0,
		&HeaderTimeoutError{Timeout: t.cfg.HeaderReadTimeout}); err != nil {
		t.fail(err)
		return nil, false
	}

	status, gameMagic, version, err := wire.DecodeProtocolHeader(preamble)
	if err != nil {
		t.fail(&ProtocolViolationError{Reason: "bad protocol preamble", Cause: err})
		return nil, false
	}
	if gameMagic != t.cfg.GameMagic {
		t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("game magic mismatch: %q", gameMagic)})
		return nil, false
	}
	if version != wire.ProtocolVersion {
		t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("protocol version mismatch: %d", version)})
		return nil, false
	}
	if status != wire.StatusClusterRunning {
		t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("cluster not running: %s", status)})
		return nil, false
	}

	if err := t.writeMessage(&ClientHello{
		ClientVersion:    t.cfg.ClientVersion,
		FullProtocolHash: t.cfg.FullProtocolHash,
	}); err != nil {
		t.fail(err)
		return nil, false
	}

	hdr, payload, err := t.readPacket()
	if err != nil {
		t.fail(err)
		return nil, false
	}
	if hdr.Type != wire.PacketMessage {
		t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("unexpected %s packet during handshake", hdr.Type)})
		return nil, false
	}
	msg, err := wire.DecodeMessage(payload, 0, len(payload), t.reg)
	if err != nil {
		t.fail(&ProtocolViolationError{Reason: "server hello decode failed", Cause: err})
		return nil, false
	}
	hello, ok := msg.(*ServerHello)
	if !ok {
		t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("expected ServerHello, got type %d", msg.TypeCode())})
		return nil, false
	}
	return hello, true
}

// readPump delivers decoded messages in wire arrival order; control
// packets never surface as ReceivedEvent.
func (t *StreamTransport) readPump() {
	for t.lifeCtx.Err() == nil {
		hdr, payload, err := t.readPacket()
		if err != nil {
			t.fail(err)
			return
		}

		t.receivedPackets.Add(1)
		observability.RecordPacketReceived(hdr.Type.String(), wire.PacketHeaderLen+len(payload))

		switch hdr.Type {
		case wire.PacketPing:
			t.queue.push(queueItem{controlType: wire.PacketPong})
		case wire.PacketPong:
			// keepalive reply, consumed silently
		case wire.PacketSessionStatus:
			code, err := wire.NewReader(payload).ReadVarUint()
			if err != nil {
				t.fail(&ProtocolViolationError{Reason: "bad session status payload", Cause: err})
				return
			}
			t.emit(InfoEvent{Info: SessionStatusInfo{Code: code}})
		case wire.PacketMessage:
			msg, err := wire.DecodeMessage(payload, 0, len(payload), t.reg)
			if err != nil {
				t.fail(&ProtocolViolationError{Reason: "message decode failed", Cause: err})
				return
			}
			t.emit(ReceivedEvent{Msg: msg})
		default:
			t.fail(&ProtocolViolationError{Reason: fmt.Sprintf("unexpected packet type %s", hdr.Type)})
			return
		}
	}
}

// writePump drains the send queue in FIFO order and keeps the connection
// alive with Ping packets while no application traffic is pending.
func (t *StreamTransport) writePump() {
	keepalive := time.NewTimer(t.cfg.WriteKeepaliveInterval)
	defer keepalive.Stop()

	for {
		for {
			it, ok := t.queue.pop()
			if !ok {
				break
			}
			if it.isClose {
				// everything enqueued before the marker is already flushed
				t.setState(StateClosing)
				t.shutdown(&EnqueuedCloseError{Payload: it.closePayload})
				return
			}
			var err error
			if it.msg != nil {
				err = t.writeMessage(it.msg)
			} else {
				err = t.writeControl(it.controlType)
			}
			if err != nil {
				t.fail(err)
				return
			}
			resetTimer(keepalive, t.cfg.WriteKeepaliveInterval)
		}

		select {
		case <-t.queue.notify:
		case <-keepalive.C:
			if err := t.writeControl(wire.PacketPing); err != nil {
				t.fail(err)
				return
			}
			observability.RecordKeepalive()
			t.emit(InfoEvent{Info: DiagnosticInfo{
				State:           t.State(),
				SentPackets:     t.sentPackets.Load(),
				ReceivedPackets: t.receivedPackets.Load(),
				QueueDepth:      t.queue.len(),
			}})
			keepalive.Reset(t.cfg.WriteKeepaliveInterval)
		case <-t.lifeCtx.Done():
			return
		}
	}
}

// readPacket reads one framed packet; header and payload reads are each
// bounded by ReadTimeout and bracketed by duration warnings.
func (t *StreamTransport) readPacket() (wire.PacketHeader, []byte, error) {
	hdrBuf := make([]byte, wire.PacketHeaderLen)
	if err := t.timedRead(hdrBuf, t.cfg.ReadTimeout, t.cfg.WarnAfterReadDuration,
		&ReadTimeoutError{Timeout: t.cfg.ReadTimeout}); err != nil {
		return wire.PacketHeader{}, nil, err
	}
	hdr, err := wire.DecodePacketHeader(hdrBuf, 0, !t.cfg.DisablePayloadLimit)
	if err != nil {
		return wire.PacketHeader{}, nil, &ProtocolViolationError{Reason: "bad packet header", Cause: err}
	}
	payload := make([]byte, hdr.PayloadSize)
	if hdr.PayloadSize > 0 {
		if err := t.timedRead(payload, t.cfg.ReadTimeout, t.cfg.WarnAfterReadDuration,
			&ReadTimeoutError{Timeout: t.cfg.ReadTimeout}); err != nil {
			return wire.PacketHeader{}, nil, err
		}
	}
	return hdr, payload, nil
}

func (t *StreamTransport) writeMessage(msg wire.Message) error {
	w := wire.NewWriter(wire.PacketHeaderLen + 128)
	w.WriteRaw(make([]byte, wire.PacketHeaderLen))
	wire.EncodeMessage(w, msg)
	buf := w.Bytes()

	hdr := wire.PacketHeader{
		Type:        wire.PacketMessage,
		Compression: wire.CompressionNone,
		PayloadSize: len(buf) - wire.PacketHeaderLen,
	}
	if err := wire.EncodePacketHeader(hdr, buf, !t.cfg.DisablePayloadLimit); err != nil {
		return err
	}
	return t.writePacket(hdr.Type, buf)
}

func (t *StreamTransport) writeControl(pt wire.PacketType) error {
	buf := make([]byte, wire.PacketHeaderLen)
	hdr := wire.PacketHeader{Type: pt, Compression: wire.CompressionNone}
	if err := wire.EncodePacketHeader(hdr, buf, false); err != nil {
		return err
	}
	return t.writePacket(pt, buf)
}

func (t *StreamTransport) writePacket(pt wire.PacketType, buf []byte) error {
	if err := t.timedWrite(buf, t.cfg.WriteTimeout, t.cfg.WarnAfterWriteDuration,
		&WriteTimeoutError{Timeout: t.cfg.WriteTimeout}); err != nil {
		return err
	}
	t.sentPackets.Add(1)
	observability.RecordPacketSent(pt.String(), len(buf))
	return nil
}

func (t *StreamTransport) timedRead(buf []byte, timeout, warnAfter time.Duration, onTimeout error) error {
	s := t.getStream()
	if s == nil {
		return errLifetimeCanceled
	}
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(s, buf)
		done <- err
	}()
	return t.awaitIO(done, timeout, warnAfter, DirectionRead, onTimeout)
}

func (t *StreamTransport) timedWrite(buf []byte, timeout, warnAfter time.Duration, onTimeout error) error {
	s := t.getStream()
	if s == nil {
		return errLifetimeCanceled
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.Write(buf)
		done <- err
	}()
	return t.awaitIO(done, timeout, warnAfter, DirectionWrite, onTimeout)
}

// awaitIO races one stream operation against its warn threshold, its
// timeout, and transport shutdown. Only one operation per direction is
// in flight at a time, so warning pairs never interleave.
func (t *StreamTransport) awaitIO(done <-chan error, timeout, warnAfter time.Duration, dir Direction, onTimeout error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var warnC <-chan time.Time
	if warnAfter > 0 {
		warn := time.NewTimer(warnAfter)
		defer warn.Stop()
		warnC = warn.C
	}

	warned := false
	started := time.Now()
	for {
		select {
		case err := <-done:
			if warned {
				t.emit(InfoEvent{Info: DurationWarningInfo{Direction: dir, IsBegin: false, Elapsed: time.Since(started)}})
			}
			if err != nil {
				return &StreamClosedError{Cause: err}
			}
			return nil
		case <-warnC:
			warned = true
			warnC = nil
			observability.RecordSlowOperation(dir.String())
			t.emit(InfoEvent{Info: DurationWarningInfo{Direction: dir, IsBegin: true, Elapsed: time.Since(started)}})
		case <-timer.C:
			return onTimeout
		case <-t.lifeCtx.Done():
			return errLifetimeCanceled
		}
	}
}

// fail routes an operation error into the single terminal event, letting
// shutdown-induced interruptions pass silently.
func (t *StreamTransport) fail(err error) {
	if errors.Is(err, errLifetimeCanceled) {
		t.shutdown(nil)
		return
	}
	t.shutdown(err)
}

// shutdown moves the transport to Closed exactly once, cancels every
// outstanding operation, releases the stream, and delivers the terminal
// event (if any) before closing the event channel.
func (t *StreamTransport) shutdown(err error) {
	t.closeOnce.Do(func() {
		t.state.Store(int32(StateClosed))
		t.lifeCancel()

		t.streamMu.Lock()
		if t.stream != nil {
			_ = t.stream.Close()
		}
		t.streamClosed = true
		t.streamMu.Unlock()

		if err != nil {
			t.log.Debug().Err(err).Msg("transport closed")
		} else {
			t.log.Debug().Msg("transport disposed")
		}

		t.evMu.Lock()
		t.evClosed = true
		t.evMu.Unlock()

		if err != nil {
			t.deliverTerminal(ErrorEvent{Err: err})
		}
		close(t.events)
	})
}

// deliverTerminal places the terminal event on the channel without ever
// blocking. evClosed is already set, so this is the sole sender; when
// the owner has stopped draining, the oldest buffered events are
// dropped to make room.
func (t *StreamTransport) deliverTerminal(ev Event) {
	for {
		select {
		case t.events <- ev:
			return
		default:
		}
		select {
		case <-t.events:
		default:
		}
	}
}

func (t *StreamTransport) emit(ev Event) {
	t.evMu.Lock()
	defer t.evMu.Unlock()
	if t.evClosed {
		return
	}
	select {
	case t.events <- ev:
	case <-t.lifeCtx.Done():
		// shutdown is in progress; the event is dropped
	}
}

func (t *StreamTransport) setStream(s io.ReadWriteCloser) bool {
	t.streamMu.Lock()
	defer t.streamMu.Unlock()
	if t.streamClosed {
		return false
	}
	t.stream = s
	return true
}

func (t *StreamTransport) getStream() io.ReadWriteCloser {
	t.streamMu.Lock()
	defer t.streamMu.Unlock()
	return t.stream
}

// setState never overwrites the terminal Closed state.
func (t *StreamTransport) setState(s State) {
	for {
		cur := t.state.Load()
		if cur == int32(StateClosed) {
			return
		}
		if t.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func resetTimer(tm *time.Timer, d time.Duration) {
	if !tm.Stop() {
		select {
		case <-tm.C:
		default:
		}
	}
	tm.Reset(d)
}
