package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is a one-shot control connection used by the CLI subcommands.
type Client struct {
	conn    *Conn
	timeout time.Duration
}

// Dial connects to the daemon's control socket.
func Dial(socketPath string) (*Client, error) {
	raw, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w (is updaterd running?)", socketPath, err)
	}
	return &Client{conn: NewConn(raw), timeout: 30 * time.Second}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check asks the daemon to run an update check now.
func (c *Client) Check() (CheckResponse, error) {
	var resp CheckResponse
	err := c.roundTrip(TypeCheck, TypeCheckResult, struct{}{}, &resp)
	return resp, err
}

// Status fetches the daemon's current state.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.roundTrip(TypeStatus, TypeStatusResult, struct{}{}, &resp)
	return resp, err
}

// Install asks the daemon to spawn the privileged installer.
func (c *Client) Install() (InstallResponse, error) {
	var resp InstallResponse
	err := c.roundTrip(TypeInstall, TypeInstallResult, struct{}{}, &resp)
	return resp, err
}

func (c *Client) roundTrip(reqType, wantType string, payload, out any) error {
	id := uuid.NewString()
	c.conn.SetDeadline(time.Now().Add(c.timeout))

	if err := c.conn.SendTyped(id, reqType, payload); err != nil {
		return err
	}
	env, err := c.conn.Recv()
	if err != nil {
		return err
	}
	if env.Error != "" {
		return fmt.Errorf("control: %s", env.Error)
	}
	if env.ID != id || env.Type != wantType {
		return fmt.Errorf("control: unexpected response %s (id %s)", env.Type, env.ID)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("control: unmarshal response: %w", err)
	}
	return nil
}
