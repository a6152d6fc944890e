// Package server runs the bridge's request loop over a byte stream pair,
// normally the process's stdin and stdout.
//
// Processing is synchronous and request-at-a-time: one inbound message is
// fully handled and its response frames written before the next message
// is interpreted. The only suspension point is between chunks of a
// multi-frame read, where the loop waits for the host's flow-control
// acknowledgment before sending the next chunk.
package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/internal/telemetry"
	"github.com/filebridge-dev/filebridge/pkg/bridge"
	"github.com/filebridge-dev/filebridge/pkg/transport/nativemsg"
)

// DefaultAckTimeout bounds how long the loop waits for the host to
// acknowledge a chunk before abandoning the remainder of the read.
const DefaultAckTimeout = 30 * time.Second

// Config holds the serve loop settings.
type Config struct {
	// MaxMessageSize bounds inbound envelopes. Zero selects the
	// transport default (1 MiB).
	MaxMessageSize uint32

	// RequireAck gates multi-chunk responses on an acknowledgment from
	// the host between frames. Single-frame responses never wait.
	RequireAck bool

	// AckTimeout is the per-chunk acknowledgment deadline. Zero selects
	// DefaultAckTimeout.
	AckTimeout time.Duration
}

// Server owns one serve session over a stream pair.
type Server struct {
	dispatcher *bridge.Dispatcher
	reader     *nativemsg.Reader
	writer     *nativemsg.Writer
	cfg        Config
	sessionID  string
}

// New creates a server reading envelopes from in and writing responses
// to out.
func New(dispatcher *bridge.Dispatcher, in io.Reader, out io.Writer, cfg Config) *Server {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return &Server{
		dispatcher: dispatcher,
		reader:     nativemsg.NewReader(in, cfg.MaxMessageSize),
		writer:     nativemsg.NewWriter(out),
		cfg:        cfg,
		sessionID:  uuid.New().String(),
	}
}

// SessionID returns the identifier assigned to this serve session.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Serve runs the request loop until the peer closes the stream, the
// context is cancelled, or an unrecoverable transport failure occurs.
//
// Request-level failures (malformed frames, denied paths, missing files)
// never end the loop; they produce ERROR frames and the loop reads on.
func (s *Server) Serve(ctx context.Context) error {
	logger.Info("Bridge session started", "session_id", s.sessionID)

	ctx, span := telemetry.StartSpan(ctx, "bridge.session")
	telemetry.SetAttributes(ctx, telemetry.SessionID(s.sessionID))
	defer span.End()

	// The transport read blocks without a cancellation hook, so a
	// dedicated goroutine feeds the loop. It exits when Next fails,
	// which includes the peer closing stdin.
	msgCh := make(chan nativemsg.Message)
	errCh := make(chan error, 1)
	go func() {
		for {
			msg, err := s.reader.Next()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Bridge session stopping", "session_id", s.sessionID)
			return nil

		case err := <-errCh:
			if err == io.EOF {
				logger.Info("Host closed the stream", "session_id", s.sessionID)
				return nil
			}
			return fmt.Errorf("transport failure: %w", err)

		case msg := <-msgCh:
			carried, err := s.handle(ctx, msg, msgCh)
			if err != nil {
				return err
			}
			// A frame that arrived while a response was streaming
			// aborts the stream and is handled in its place.
			for carried != nil {
				carried, err = s.handle(ctx, carried, msgCh)
				if err != nil {
					return err
				}
			}
		}
	}
}

// handle processes one inbound message. It returns a non-nil carried
// message when a new binary frame preempted an in-progress chunk stream;
// the caller must process it next.
func (s *Server) handle(ctx context.Context, msg nativemsg.Message, msgCh <-chan nativemsg.Message) (nativemsg.Message, error) {
	switch m := msg.(type) {
	case nativemsg.Ack:
		// Acks outside a chunk stream have nothing to release.
		logger.Debug("Ignoring unsolicited ack", "session_id", s.sessionID)
		return nil, nil

	case nativemsg.Unknown:
		logger.Warn("Dropping message with unknown type", "type", m.Type)
		return nil, nil

	case nativemsg.Binary:
		return s.respond(ctx, s.dispatcher.Dispatch(ctx, m.Frame), msgCh)

	default:
		logger.Warn("Dropping message of unexpected variant")
		return nil, nil
	}
}

// respond writes the response frames for one request in order, waiting
// for an acknowledgment between chunks when flow control is enabled.
//
// An ack timeout abandons the remaining chunks of the read; the next
// request proceeds normally. A write failure is unrecoverable and ends
// the session.
func (s *Server) respond(ctx context.Context, frames [][]byte, msgCh <-chan nativemsg.Message) (nativemsg.Message, error) {
	for i, frame := range frames {
		if err := s.writer.WriteFrame(frame); err != nil {
			return nil, fmt.Errorf("write response frame: %w", err)
		}

		last := i == len(frames)-1
		if last || !s.cfg.RequireAck {
			continue
		}

		carried, ok := s.awaitAck(ctx, msgCh)
		if !ok {
			logger.Warn("Abandoning remaining chunks",
				"session_id", s.sessionID,
				"sent", i+1,
				"total", len(frames))
			return carried, nil
		}
	}
	return nil, nil
}

// awaitAck blocks until the host acknowledges the last chunk. It returns
// ok=false on timeout or cancellation, and carries back any binary frame
// that arrived instead of the expected ack.
func (s *Server) awaitAck(ctx context.Context, msgCh <-chan nativemsg.Message) (carried nativemsg.Message, ok bool) {
	timer := time.NewTimer(s.cfg.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false

		case <-timer.C:
			logger.Warn("Timed out waiting for chunk acknowledgment",
				"session_id", s.sessionID,
				"timeout", s.cfg.AckTimeout)
			return nil, false

		case msg := <-msgCh:
			switch m := msg.(type) {
			case nativemsg.Ack:
				return nil, true
			case nativemsg.Unknown:
				logger.Warn("Dropping message with unknown type", "type", m.Type)
				continue
			default:
				// A new request mid-stream means the host gave up on
				// this read.
				logger.Warn("New frame preempted chunk stream", "session_id", s.sessionID)
				return msg, false
			}
		}
	}
}
