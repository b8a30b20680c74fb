package docker

import (
	"github.com/docker/docker/client"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Connection to a Docker Engine.
type Client struct {
	api *client.Client // Engine API client.
}

// Creates a client configured from the environment.
//
// The API version is negotiated with the engine on first use.
func New() (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fault.Wrap(ErrDocker, err)
	}
	return &Client{api: api}, nil
}

// Closes the connection to the engine.
func (c *Client) Close() error {
	return c.api.Close()
}
