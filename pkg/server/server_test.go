package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filebridge-dev/filebridge/pkg/bridge"
	proto "github.com/filebridge-dev/filebridge/pkg/protocol/bridge"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
	"github.com/filebridge-dev/filebridge/pkg/transport/nativemsg"
)

// newTestDispatcher builds a dispatcher whose sandbox allows only root.
func newTestDispatcher(t *testing.T, root string, maxChunkSize uint64) *bridge.Dispatcher {
	t.Helper()
	policy, err := sandbox.NewPolicy([]string{root})
	require.NoError(t, err)
	executor := bridge.NewExecutor(sandbox.NewStore(policy), maxChunkSize, nil)
	return bridge.NewDispatcher(executor, nil)
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// writeRawEnvelope writes a length-prefixed envelope body, used for the
// message types the frame writer does not produce (acks, garbage).
func writeRawEnvelope(t *testing.T, w io.Writer, body string) {
	t.Helper()
	var lenBuf [4]byte
	binary.NativeEndian.PutUint32(lenBuf[:], uint32(len(body)))
	_, err := w.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
}

// readFrame reads the next binary envelope from the stream and returns
// the decoded frame header and payload.
func readFrame(t *testing.T, r *nativemsg.Reader) (*proto.Header, []byte) {
	t.Helper()
	msg, err := r.Next()
	require.NoError(t, err)
	bin, ok := msg.(nativemsg.Binary)
	require.True(t, ok, "expected a binary envelope, got %T", msg)
	h, err := proto.DecodeHeader(bin.Frame)
	require.NoError(t, err)
	return h, h.Payload(bin.Frame)
}

// ============================================================================
// Serve Loop Tests
// ============================================================================

func TestServe(t *testing.T) {
	t.Run("PingPongOverStream", func(t *testing.T) {
		var in, out bytes.Buffer
		inWriter := nativemsg.NewWriter(&in)
		require.NoError(t, inWriter.WriteFrame(proto.EncodePing(42)))

		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), &in, &out, Config{})
		require.NoError(t, srv.Serve(context.Background()))

		h, _ := readFrame(t, nativemsg.NewReader(&out, 0))
		assert.Equal(t, proto.CmdPong, h.Command)
		assert.Equal(t, uint32(42), h.RequestID)
	})

	t.Run("EOFEndsSessionCleanly", func(t *testing.T) {
		var out bytes.Buffer
		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), bytes.NewReader(nil), &out, Config{})

		require.NoError(t, srv.Serve(context.Background()))
		assert.Zero(t, out.Len())
	})

	t.Run("CancellationEndsSession", func(t *testing.T) {
		inReader, _ := io.Pipe()
		defer inReader.Close()
		var out bytes.Buffer

		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), inReader, &out, Config{})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not stop on cancellation")
		}
	})

	t.Run("UnknownTypeMessagesAreDropped", func(t *testing.T) {
		var in, out bytes.Buffer
		writeRawEnvelope(t, &in, `{"type":"weird"}`)
		writeRawEnvelope(t, &in, `{"type":"ack"}`)

		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), &in, &out, Config{})

		require.NoError(t, srv.Serve(context.Background()))
		assert.Zero(t, out.Len())
	})

	t.Run("SequentialRequests", func(t *testing.T) {
		var in, out bytes.Buffer
		inWriter := nativemsg.NewWriter(&in)
		require.NoError(t, inWriter.WriteFrame(proto.EncodePing(1)))
		require.NoError(t, inWriter.WriteFrame(proto.EncodePing(2)))

		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), &in, &out, Config{})
		require.NoError(t, srv.Serve(context.Background()))

		outReader := nativemsg.NewReader(&out, 0)
		h, _ := readFrame(t, outReader)
		assert.Equal(t, uint32(1), h.RequestID)
		h, _ = readFrame(t, outReader)
		assert.Equal(t, uint32(2), h.RequestID)
	})

	t.Run("SessionIDAssigned", func(t *testing.T) {
		srv := New(newTestDispatcher(t, canonicalTempDir(t), 0), bytes.NewReader(nil), io.Discard, Config{})
		other := New(newTestDispatcher(t, canonicalTempDir(t), 0), bytes.NewReader(nil), io.Discard, Config{})

		assert.NotEmpty(t, srv.SessionID())
		assert.NotEqual(t, srv.SessionID(), other.SessionID())
	})
}

// ============================================================================
// Flow Control Tests
// ============================================================================

func TestFlowControl(t *testing.T) {
	t.Run("ChunksGatedOnAcks", func(t *testing.T) {
		root := canonicalTempDir(t)
		content := make([]byte, 25)
		for i := range content {
			content[i] = byte(i)
		}
		path := filepath.Join(root, "data.bin")
		require.NoError(t, os.WriteFile(path, content, 0644))

		inReader, inWriter := io.Pipe()
		outReader, outWriter := io.Pipe()
		defer inWriter.Close()
		defer outReader.Close()

		srv := New(newTestDispatcher(t, root, 10), inReader, outWriter, Config{
			RequireAck: true,
		})

		done := make(chan error, 1)
		go func() { done <- srv.Serve(context.Background()) }()

		client := nativemsg.NewWriter(inWriter)
		require.NoError(t, client.WriteFrame(proto.EncodeReadRequest(7, 0, 25, path)))

		frames := nativemsg.NewReader(outReader, 0)
		var reassembled []byte
		for i := 0; i < 3; i++ {
			h, payload := readFrame(t, frames)
			assert.Equal(t, proto.CmdReadResponse, h.Command)
			assert.Equal(t, uint32(7), h.RequestID)

			_, data, err := proto.DecodeReadResponse(payload)
			require.NoError(t, err)
			reassembled = append(reassembled, data...)

			if i < 2 {
				assert.Zero(t, h.Flags&proto.FlagLastChunk)
				writeRawEnvelope(t, inWriter, `{"type":"ack"}`)
			} else {
				assert.Equal(t, proto.FlagLastChunk, h.Flags&proto.FlagLastChunk)
			}
		}
		assert.Equal(t, content, reassembled)

		require.NoError(t, inWriter.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not stop after stream close")
		}
	})

	t.Run("NoAckGatingWhenDisabled", func(t *testing.T) {
		root := canonicalTempDir(t)
		content := make([]byte, 25)
		path := filepath.Join(root, "data.bin")
		require.NoError(t, os.WriteFile(path, content, 0644))

		var in, out bytes.Buffer
		client := nativemsg.NewWriter(&in)
		require.NoError(t, client.WriteFrame(proto.EncodeReadRequest(1, 0, 25, path)))

		srv := New(newTestDispatcher(t, root, 10), &in, &out, Config{RequireAck: false})
		require.NoError(t, srv.Serve(context.Background()))

		frames := nativemsg.NewReader(&out, 0)
		for i := 0; i < 3; i++ {
			h, _ := readFrame(t, frames)
			assert.Equal(t, proto.CmdReadResponse, h.Command)
		}
	})

	t.Run("AckTimeoutAbandonsRemainingChunks", func(t *testing.T) {
		root := canonicalTempDir(t)
		content := make([]byte, 25)
		path := filepath.Join(root, "data.bin")
		require.NoError(t, os.WriteFile(path, content, 0644))

		inReader, inWriter := io.Pipe()
		var out safeBuffer

		srv := New(newTestDispatcher(t, root, 10), inReader, &out, Config{
			RequireAck: true,
			AckTimeout: 50 * time.Millisecond,
		})

		done := make(chan error, 1)
		go func() { done <- srv.Serve(context.Background()) }()

		client := nativemsg.NewWriter(inWriter)
		require.NoError(t, client.WriteFrame(proto.EncodeReadRequest(2, 0, 25, path)))

		// Never ack; the loop must give up on the read by itself.
		time.Sleep(250 * time.Millisecond)
		require.NoError(t, inWriter.Close())

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not stop after stream close")
		}

		frames := nativemsg.NewReader(out.Reader(), 0)
		h, _ := readFrame(t, frames)
		assert.Equal(t, proto.CmdReadResponse, h.Command)
		_, err := frames.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("NewRequestPreemptsChunkStream", func(t *testing.T) {
		root := canonicalTempDir(t)
		content := make([]byte, 25)
		path := filepath.Join(root, "data.bin")
		require.NoError(t, os.WriteFile(path, content, 0644))

		inReader, inWriter := io.Pipe()
		outReader, outWriter := io.Pipe()
		defer outReader.Close()

		srv := New(newTestDispatcher(t, root, 10), inReader, outWriter, Config{
			RequireAck: true,
		})

		done := make(chan error, 1)
		go func() { done <- srv.Serve(context.Background()) }()

		client := nativemsg.NewWriter(inWriter)
		require.NoError(t, client.WriteFrame(proto.EncodeReadRequest(3, 0, 25, path)))

		frames := nativemsg.NewReader(outReader, 0)
		h, _ := readFrame(t, frames)
		assert.Equal(t, proto.CmdReadResponse, h.Command)
		assert.Zero(t, h.Flags&proto.FlagLastChunk)

		// Send a ping instead of the expected ack. The read is abandoned
		// and the ping answered.
		require.NoError(t, client.WriteFrame(proto.EncodePing(4)))

		h, _ = readFrame(t, frames)
		assert.Equal(t, proto.CmdPong, h.Command)
		assert.Equal(t, uint32(4), h.RequestID)

		require.NoError(t, inWriter.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not stop after stream close")
		}
	})
}

// safeBuffer is a bytes.Buffer guarded for cross-goroutine write/read.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Reader snapshots the current contents. Call only after writers stop.
func (b *safeBuffer) Reader() *bytes.Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.NewReader(b.buf.Bytes())
}
