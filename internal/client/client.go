// Package client talks to the pybox daemon over its Unix domain socket.
//
// Each call opens a connection, writes one newline-delimited envelope, and
// reads one response. Error responses come back as errors matching
// [protocol.ErrRemoteError] with the daemon's message.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/protocol"
)

// Client for the daemon socket.
type Client struct {
	socket string // Path to the Unix socket.
}

// Creates a client for the socket at path. An empty path uses the default.
func New(path string) *Client {
	if path == "" {
		path = paths.Socket()
	}
	return &Client{socket: path}
}

// Sends a command and returns the payload of a successful response.
//
// Cancelling ctx closes the connection, which the daemon treats as a
// cancellation of the request.
func (c *Client) Call(ctx context.Context, cmd protocol.Command, payload any) (json.RawMessage, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return nil, fault.Wrap(ErrConnect, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fault.Wrap(ErrConnect, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Wrap(ErrConnect, err)
	}

	env, resp, err := protocol.Decode(line)
	if err != nil {
		return nil, err
	}

	switch env.Command {
	case protocol.CmdOK:
		return resp, nil
	case protocol.CmdError:
		result, err := protocol.DecodePayload[protocol.ErrorResult](resp)
		if err != nil {
			return nil, err
		}
		return nil, fault.Wrapf(protocol.ErrRemoteError, "%s", result.Message)
	default:
		return nil, fault.Wrapf(ErrUnexpected, "%s", env.Command)
	}
}

// Queries the daemon status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	resp, err := c.Call(ctx, protocol.CmdStatus, nil)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.StatusResult](resp)
}

// Asks the daemon to shut down.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.Call(ctx, protocol.CmdShutdown, nil)
	return err
}

// Builds an image on the daemon.
func (c *Client) Build(ctx context.Context, req *protocol.BuildRequest) (*protocol.BuildResult, error) {
	resp, err := c.Call(ctx, protocol.CmdBuild, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.BuildResult](resp)
}

// Launches a built archive detached on the daemon.
func (c *Client) Launch(ctx context.Context, req *protocol.LaunchRequest) (*protocol.LaunchResult, error) {
	resp, err := c.Call(ctx, protocol.CmdLaunch, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.LaunchResult](resp)
}

// Stops a launched container.
func (c *Client) StopContainer(ctx context.Context, id string) error {
	_, err := c.Call(ctx, protocol.CmdContainerStop, &protocol.ContainerRequest{ID: id})
	return err
}

// Returns the state of a launched container.
func (c *Client) ContainerStatus(ctx context.Context, id string) (*protocol.ContainerStatusResult, error) {
	resp, err := c.Call(ctx, protocol.CmdContainerStatus, &protocol.ContainerRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.ContainerStatusResult](resp)
}

// Removes a launched container.
func (c *Client) DestroyContainer(ctx context.Context, id string) error {
	_, err := c.Call(ctx, protocol.CmdContainerDestroy, &protocol.ContainerRequest{ID: id})
	return err
}
