package client

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueueError is an error the broker reported over the wire.
type QueueError struct {
	Reason string
}

func (e *QueueError) Error() string {
	return e.Reason
}

// Client is a synchronous client for a duraq broker.
//
//	c := client.New("127.0.0.1:5555")
//	if err := c.Connect(); err != nil { ... }
//	defer c.Close()
//	_ = c.Push("hello world")
//	msg, ok, err := c.Pull("my-consumer")
type Client struct {
	addr    string
	timeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
}

func New(addr string) *Client {
	return &Client{
		addr:    addr,
		timeout: 30 * time.Second,
	}
}

// NewWithTimeout sets the dial and per-request I/O timeout.
func NewWithTimeout(addr string, timeout time.Duration) *Client {
	return &Client{
		addr:    addr,
		timeout: timeout,
	}
}

// NewConsumerID returns a random consumer identity.
func NewConsumerID() string {
	return "consumer-" + uuid.NewString()
}

func (c *Client) Connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("connect to broker %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Push sends one message to the queue. The message must not contain a
// newline; that is rejected before any bytes reach the wire.
func (c *Client) Push(message string) error {
	if strings.ContainsAny(message, "\r\n") {
		return fmt.Errorf("message cannot contain newlines")
	}

	response, err := c.request(fmt.Sprintf("PUSH %s\n", message))
	if err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(response, "OK"):
		return nil
	case strings.HasPrefix(response, "ERR "):
		return &QueueError{Reason: strings.TrimSpace(response[4:])}
	default:
		return &QueueError{Reason: fmt.Sprintf("unexpected response: %s", response)}
	}
}

// Pull requests the next message for consumerID. ok is false when the
// broker has nothing new for this consumer.
func (c *Client) Pull(consumerID string) (message string, ok bool, err error) {
	response, err := c.request(fmt.Sprintf("PULL %s\n", consumerID))
	if err != nil {
		return "", false, err
	}

	switch {
	case strings.HasPrefix(response, "MSG "):
		return strings.TrimRight(response[4:], "\r\n"), true, nil
	case strings.HasPrefix(response, "EMPTY"):
		return "", false, nil
	case strings.HasPrefix(response, "ERR "):
		return "", false, &QueueError{Reason: strings.TrimSpace(response[4:])}
	default:
		return "", false, &QueueError{Reason: fmt.Sprintf("unexpected response: %s", response)}
	}
}

func (c *Client) request(line string) (string, error) {
	if c.conn == nil {
		return "", fmt.Errorf("not connected")
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", err
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	response, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return response, nil
}
