// Package nut speaks the Network UPS Tools line protocol to a upsd server.
// Each reading opens a fresh connection, lists the devices, pulls every
// device's variable table, and closes the connection; no session state
// survives between readings.
package nut

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Device is one UPS and its raw variable table as reported by upsd.
type Device struct {
	Name       string
	Parameters map[string]string
}

// Client reads UPS devices from one upsd server.
type Client struct {
	addr string
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewClient creates a client for the upsd server at host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		dial: dialTCP,
	}
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Devices lists every UPS the server knows and its variables. Any transport
// failure aborts the whole reading; the connection is not trusted to recover
// mid-conversation.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	conn, err := c.dial(ctx, c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to NUT server at %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting deadline: %w", err)
		}
	}

	session := &session{conn: conn, lines: bufio.NewReader(conn)}

	names, err := session.listUPS()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(names))
	for _, name := range names {
		params, err := session.listVars(name)
		if err != nil {
			return nil, err
		}
		devices = append(devices, Device{Name: name, Parameters: params})
	}
	return devices, nil
}

// session is one open conversation with upsd.
type session struct {
	conn  net.Conn
	lines *bufio.Reader
}

func (s *session) send(cmd string) error {
	if _, err := io.WriteString(s.conn, cmd); err != nil {
		return fmt.Errorf("sending %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

// readLine returns the next trimmed line. io.EOF surfaces as ("", false,
// nil): the server hanging up ends the listing with whatever was read so
// far, mirroring how upsd closes idle conversations.
func (s *session) readLine() (string, bool, error) {
	line, err := s.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("reading response: %w", err)
	}
	if line == "" {
		return "", false, nil
	}
	return strings.TrimSpace(line), true, nil
}

// listUPS sends LIST UPS and collects the device name tokens. Lines that
// don't parse as "UPS <name> ..." rows (BEGIN markers, banners) are skipped.
func (s *session) listUPS() ([]string, error) {
	if err := s.send("LIST UPS\n"); err != nil {
		return nil, err
	}

	var names []string
	for {
		line, ok, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if !ok || line == "END LIST UPS" {
			return names, nil
		}

		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[0] == "UPS" {
			names = append(names, parts[1])
		}
	}
}

// listVars sends LIST VAR for one device and builds its variable table.
// Rows look like `VAR <name> <key> "<value>"`; the value keeps any inner
// spaces. Unrecognized rows are skipped.
func (s *session) listVars(name string) (map[string]string, error) {
	if err := s.send("LIST VAR " + name + "\n"); err != nil {
		return nil, err
	}

	params := make(map[string]string)
	for {
		line, ok, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if !ok || strings.HasPrefix(line, "END LIST VAR") {
			return params, nil
		}

		parts := strings.SplitN(line, " ", 4)
		if len(parts) == 4 && parts[0] == "VAR" {
			params[parts[2]] = strings.Trim(parts[3], `"`)
		}
	}
}
