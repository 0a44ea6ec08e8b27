// Package mcp implements a client for MCP (Model Context Protocol)
// tool servers speaking line-oriented JSON-RPC 2.0 over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

const (
	protocolVersion = "2024-11-05"

	handshakeTimeout = 30 * time.Second
	callTimeout      = 120 * time.Second
)

// Client talks to one MCP server process over its stdin/stdout.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	scanner *bufio.Scanner

	requestID atomic.Int64
	pending   sync.Map // map[int64]chan *Response

	tools     []domain.Tool
	toolsOnce sync.Once

	logger *log.Logger
	mu     sync.Mutex
}

// Message types for JSON-RPC 2.0
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is a request without an id; the server must not reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewClient spawns the server process and performs the initialize
// handshake. On any failure the process is torn down and an error
// returned; no partial client is handed out.
func NewClient(command string, args []string, env map[string]string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	cmd := exec.Command(command, args...)
	cmd.Env = cmd.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}

	c := &Client{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		scanner: bufio.NewScanner(stdout),
		logger:  logger,
	}

	go c.readResponses()
	go c.drainStderr(stderr)

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return c, nil
}

func (c *Client) readResponses() {
	buf := make([]byte, 0, 64*1024)
	c.scanner.Buffer(buf, 4*1024*1024)
	for c.scanner.Scan() {
		line := c.scanner.Text()
		if line == "" {
			continue
		}

		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			c.logger.Debug("discarding unparseable server line", "err", err)
			continue
		}

		if ch, ok := c.pending.LoadAndDelete(resp.ID); ok {
			ch.(chan *Response) <- &resp
		}
	}

	// Reader ends when the process exits; fail anything still in flight.
	c.pending.Range(func(key, value any) bool {
		c.pending.Delete(key)
		value.(chan *Response) <- &Response{
			ID:    key.(int64),
			Error: &RPCError{Code: -32000, Message: "server closed connection"},
		}
		return true
	})
}

func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Debug("server stderr", "line", scanner.Text())
	}
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	ch := make(chan *Response, 1)
	c.pending.Store(req.ID, ch)

	data, err := json.Marshal(req)
	if err != nil {
		c.pending.Delete(req.ID)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.mu.Lock()
	_, err = c.stdin.Write(append(data, '\n'))
	c.mu.Unlock()
	if err != nil {
		c.pending.Delete(req.ID)
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		c.pending.Delete(req.ID)
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string) error {
	data, err := json.Marshal(Notification{JSONRPC: "2.0", Method: method})
	if err != nil {
		return err
	}
	c.mu.Lock()
	_, err = c.stdin.Write(append(data, '\n'))
	c.mu.Unlock()
	return err
}

func (c *Client) initialize(ctx context.Context) error {
	req := &Request{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "llm-terminal",
				"version": "1.0.0",
			},
		},
	}

	if _, err := c.send(ctx, req); err != nil {
		return err
	}

	return c.notify("notifications/initialized")
}

// ListTools returns the server's tools. The list is fetched once and
// cached for the lifetime of the client.
func (c *Client) ListTools(ctx context.Context) ([]domain.Tool, error) {
	var err error
	c.toolsOnce.Do(func() {
		req := &Request{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "tools/list",
		}

		var resp *Response
		resp, err = c.send(ctx, req)
		if err != nil {
			return
		}

		var result struct {
			Tools []struct {
				Name        string            `json:"name"`
				Description string            `json:"description"`
				InputSchema domain.JSONSchema `json:"inputSchema"`
			} `json:"tools"`
		}

		if err = json.Unmarshal(resp.Result, &result); err != nil {
			return
		}

		for _, t := range result.Tools {
			c.tools = append(c.tools, domain.Tool{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
	})

	return c.tools, err
}

// CallTool invokes a tool and returns its text content. A result with
// isError set is returned as both the text and an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
		defer cancel()
	}

	req := &Request{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "tools/call",
		Params: map[string]any{
			"name":      name,
			"arguments": args,
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}

	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("unmarshal result: %w", err)
	}

	var output string
	for _, block := range result.Content {
		if block.Type == "text" {
			output += block.Text
		}
	}

	if result.IsError {
		return output, fmt.Errorf("tool error: %s", output)
	}

	return output, nil
}

// Close shuts down the server process.
func (c *Client) Close() error {
	c.stdin.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
