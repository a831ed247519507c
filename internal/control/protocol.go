package control

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pitools/updaterd/internal/state"
)

// Message type constants for the control protocol.
const (
	TypeCheck         = "check"
	TypeCheckResult   = "check_result"
	TypeStatus        = "status"
	TypeStatusResult  = "status_result"
	TypeInstall       = "install"
	TypeInstallResult = "install_result"
	TypePing          = "ping"
	TypePong          = "pong"
)

// MaxMessageSize bounds a single control message (1MB). Status payloads
// carry the full pending-update list but nothing larger.
const MaxMessageSize = 1 * 1024 * 1024

// Envelope is the wire-format wrapper for all control messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StatusResponse is the daemon's answer to a status request.
type StatusResponse struct {
	Updates        state.UpdateSet `json:"updates"`
	SchedulerState string          `json:"schedulerState"`
	NextCheck      time.Time       `json:"nextCheck"`
	CheckRunning   bool            `json:"checkRunning"`
	Backend        string          `json:"backend"`
	Health         string          `json:"health"`
}

// CheckResponse acknowledges a triggered check.
type CheckResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// InstallResponse acknowledges an installer launch.
type InstallResponse struct {
	Launched bool   `json:"launched"`
	Reason   string `json:"reason,omitempty"`
}

// Conn wraps a net.Conn with length-prefixed JSON framing and sequence
// number validation. The socket lives in a root-owned directory, so
// the transport itself carries no authentication.
type Conn struct {
	conn    net.Conn
	sendSeq atomic.Uint64
	recvSeq atomic.Uint64
	mu      sync.Mutex // serializes writes
}

// NewConn wraps a raw connection.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// SetDeadline sets the deadline on the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Send marshals an Envelope and writes it as [4-byte BE length][JSON].
// It sets the sequence number automatically.
func (c *Conn) Send(env *Envelope) error {
	env.Seq = c.sendSeq.Add(1)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("control: marshal envelope: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("control: message too large: %d > %d", len(data), MaxMessageSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	if _, err := c.conn.Write(header); err != nil {
		return fmt.Errorf("control: write header: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("control: write payload: %w", err)
	}
	return nil
}

// Recv reads a length-prefixed JSON message and validates the sequence.
func (c *Conn) Recv() (*Envelope, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("control: read header: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > uint32(MaxMessageSize) {
		return nil, fmt.Errorf("control: message too large: %d > %d", length, MaxMessageSize)
	}
	if length == 0 {
		return nil, fmt.Errorf("control: zero-length message")
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return nil, fmt.Errorf("control: read payload: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("control: unmarshal envelope: %w", err)
	}

	// Sequence numbers must be strictly increasing per connection.
	prevSeq := c.recvSeq.Load()
	if env.Seq <= prevSeq && prevSeq > 0 {
		return nil, fmt.Errorf("control: sequence number %d <= last %d", env.Seq, prevSeq)
	}
	c.recvSeq.Store(env.Seq)

	return &env, nil
}

// SendTyped wraps a typed payload into an Envelope and sends it.
func (c *Conn) SendTyped(id, msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("control: marshal payload: %w", err)
	}
	return c.Send(&Envelope{ID: id, Type: msgType, Payload: raw})
}

// SendError sends an error envelope.
func (c *Conn) SendError(id, msgType, errMsg string) error {
	return c.Send(&Envelope{ID: id, Type: msgType, Error: errMsg})
}
