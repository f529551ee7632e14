// Package main provides a terminal viewer for a running replay session.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/protocol"
)

// Client is a viewer connected to the engine's WebSocket.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// NewClient connects to the engine.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func base(msgType, sessionID string) protocol.BaseMessage {
	return protocol.BaseMessage{Type: msgType, Ts: time.Now().UnixMilli(), SessionID: sessionID}
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: base(protocol.TypeHello, ""),
		APIKey:      apiKey,
		ClientMeta: map[string]string{
			"client": "replay-viewer",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var ack protocol.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if ack.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if ack.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}

	c.sessionID = ack.SessionID
	fmt.Printf("Session %s, %d questions\n", ack.SessionID, ack.MaxQuestions)
	return nil
}

var errUsage = errors.New("usage: play|pause|restart <left|right|both>, select <left|right>, hide, show")

// Send parses one input line into a viewer message and sends it.
func (c *Client) Send(input string) error {
	msg, err := parseCommand(input, c.sessionID)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func parseCommand(input, sessionID string) (interface{}, error) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return nil, errUsage
	}

	switch fields[0] {
	case "play", "pause", "restart":
		if len(fields) != 2 {
			return nil, errUsage
		}
		if _, err := domain.ParseSides(fields[1]); err != nil {
			return nil, err
		}
		return protocol.ControlMessage{
			BaseMessage: base(protocol.TypeControl, sessionID),
			Action:      fields[0],
			Side:        fields[1],
		}, nil
	case "select":
		if len(fields) != 2 {
			return nil, errUsage
		}
		if _, err := domain.ParseSide(fields[1]); err != nil {
			return nil, err
		}
		return protocol.SelectMessage{
			BaseMessage: base(protocol.TypeSelect, sessionID),
			Side:        fields[1],
		}, nil
	case "hide", "show":
		state := domain.VisibilityHidden
		if fields[0] == "show" {
			state = domain.VisibilityVisible
		}
		return protocol.VisibilityMessage{
			BaseMessage: base(protocol.TypeVisibility, sessionID),
			State:       state,
		}, nil
	}
	return nil, errUsage
}

// ReadMessages reads and prints messages from the engine until the
// connection closes or the engine navigates away.
func (c *Client) ReadMessages(left chan<- struct{}) {
	defer close(left)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			if done := render(data); done {
				return
			}
		}
	}
}

// render prints one engine message and reports whether the session is over.
func render(data []byte) bool {
	var b protocol.BaseMessage
	if err := json.Unmarshal(data, &b); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return false
	}

	switch b.Type {
	case protocol.TypeProgress:
		var msg protocol.ProgressMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("\n== Question %s ==\n", msg.Text)
	case protocol.TypeCanvas:
		var msg protocol.CanvasMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("[%s] canvas %dx%d\n", msg.Side, msg.Frame.Width, msg.Frame.Height)
	case protocol.TypeLane:
		var msg protocol.LaneMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("[%s] %d/%d\n", msg.Side, msg.Time, msg.Length)
		if msg.Frame != nil {
			for _, row := range msg.Frame.Rows {
				fmt.Printf("  |%s|\n", row)
			}
		}
	case protocol.TypeNavigate:
		var msg protocol.NavigateMessage
		json.Unmarshal(data, &msg)
		if msg.Route == domain.GoodbyeRoute {
			fmt.Println("\nAll questions answered. Thank you!")
			return true
		}
		fmt.Printf("navigate: %s\n", msg.Route)
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		json.Unmarshal(data, &msg)
		fmt.Printf("error: %s - %s\n", msg.Code, msg.Message)
	default:
		fmt.Printf("[%s] %s\n", b.Type, string(data))
	}
	return false
}

func main() {
	addr := flag.String("addr", "ws://localhost:8095/ws", "Replay engine WebSocket address")
	apiKey := flag.String("api-key", "", "API key for authentication")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*apiKey); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Println("Commands: play|pause|restart <left|right|both>, select <left|right>, hide, show, /quit")

	left := make(chan struct{})
	go client.ReadMessages(left)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		case <-left:
			return
		case input, ok := <-lines:
			if !ok || input == "/quit" {
				fmt.Println("Bye!")
				return
			}
			if input == "" {
				continue
			}
			if err := client.Send(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
