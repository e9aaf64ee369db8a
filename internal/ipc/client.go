package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// dialTimeout bounds connecting only. Ask and Shutdown calls block for as
// long as the user takes to reply.
const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

func invoke[Resp any](c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.rpc.Call(ServiceName+"."+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ask emits a request through the daemon and blocks until it resolves.
func (c *Client) Ask(req AskRequest) (*AskResponse, error) {
	return invoke[AskResponse](c, "Ask", req)
}

// Shutdown asks the user to confirm stopping the daemon.
func (c *Client) Shutdown(req ShutdownRequest) (*ShutdownResponse, error) {
	return invoke[ShutdownResponse](c, "Shutdown", req)
}

func (c *Client) Status() (*StatusResponse, error) {
	return invoke[StatusResponse](c, "Status", StatusRequest{})
}

// History returns journaled requests or speech jobs.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return invoke[HistoryResponse](c, "History", req)
}
