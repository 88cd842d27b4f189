// chatctl is a terminal client for the chat gateway. It dials the websocket
// endpoint with a locally-signed token, streams incoming events to stdout
// and turns stdin lines into protocol frames.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-core/auth"
	"chat-core/domain"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerAddr    string        `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
	User          string        `envconfig:"CHAT_USER" required:"true"`
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	TokenDuration time.Duration `envconfig:"AUTH_TOKEN_DURATION" default:"24h"`
	Colours       bool          `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatctl error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	provider := auth.NewProvider([]byte(config.JWTSecret), config.TokenDuration)
	token, err := provider.GenerateToken(domain.UserID(config.User))
	if err != nil {
		return exitConfig, fmt.Errorf("signing token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("ws://%s/ws?token=%s", config.ServerAddr, token)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddr, err)
	}
	defer ws.Close()

	printer := newPrinter(config.Colours)
	printer.banner(fmt.Sprintf("Connected to %s as %s (Ctrl+C to quit)", config.ServerAddr, config.User))

	done := make(chan error, 1)
	go func() { done <- receive(ws, printer) }()
	go sendLoop(ws, printer)

	select {
	case <-ctx.Done():
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		return exitOK, nil
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			return exitRuntime, err
		}
		return exitOK, nil
	}
}

// receive prints every server frame until the socket closes.
func receive(ws *websocket.Conn, printer *printer) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}
		printer.frame(data)
	}
}

// sendLoop converts stdin commands into protocol frames.
func sendLoop(ws *websocket.Conn, printer *printer) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		frame, err := parseCommand(scanner.Text())
		if err != nil {
			printer.warn(err.Error())
			continue
		}
		if frame == nil {
			continue
		}
		if err := ws.WriteJSON(frame); err != nil {
			printer.warn("write failed: " + err.Error())
			return
		}
	}
}

const usage = `commands:
  invite <user>              send a direct chat invite
  ginvite <user> [user...]   send a group chat invite
  accept <session>           accept a pending invite
  decline <session>          decline a pending invite
  say <session> <text>       send a message
  add <session> <user>       invite a user into a group chat
  leave <session>            leave a chat
  chats                      list your chats
  chat <session>             show one chat with history
  pending                    list pending invites
  search <terms>             full-text search your messages
  ping                       keep-alive`

func parseCommand(line string) (map[string]any, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "invite":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: invite <user>")
		}
		return map[string]any{"type": "send_chat_invite", "targets": args, "is_group": false}, nil
	case "ginvite":
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: ginvite <user> [user...]")
		}
		return map[string]any{"type": "send_chat_invite", "targets": args, "is_group": true}, nil
	case "accept", "decline":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: %s <session>", cmd)
		}
		return map[string]any{"type": "chat_invite_response", "session": args[0], "accept": cmd == "accept"}, nil
	case "say":
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: say <session> <text>")
		}
		return map[string]any{"type": "send_message", "session": args[0], "content": strings.Join(args[1:], " ")}, nil
	case "add":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: add <session> <user>")
		}
		return map[string]any{"type": "invite_to_group", "session": args[0], "user": args[1]}, nil
	case "leave":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: leave <session>")
		}
		return map[string]any{"type": "leave_chat", "session": args[0]}, nil
	case "chats":
		return map[string]any{"type": "list_chats"}, nil
	case "chat":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: chat <session>")
		}
		return map[string]any{"type": "get_chat", "session": args[0]}, nil
	case "pending":
		return map[string]any{"type": "pending_invites"}, nil
	case "search":
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: search <terms>")
		}
		return map[string]any{"type": "search_messages", "terms": strings.Join(args, " ")}, nil
	case "ping":
		return map[string]any{"type": "ping"}, nil
	case "help":
		return nil, fmt.Errorf("%s", usage)
	default:
		return nil, fmt.Errorf("unknown command %q (try: help)", cmd)
	}
}

type printer struct {
	colours bool
}

func newPrinter(colours bool) *printer {
	return &printer{colours: colours}
}

func (p *printer) banner(text string) {
	header := fmt.Sprintf("  ====== %s ======", text)
	if p.colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
}

func (p *printer) warn(text string) {
	if p.colours {
		text = color.FgYellow.Render(text)
	}
	fmt.Println(text)
}

type serverFrame struct {
	Type  string          `json:"type"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// frame renders one server frame. Chat lists become a table, messages a
// one-liner, everything else compact JSON.
func (p *printer) frame(data []byte) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		fmt.Println(string(data))
		return
	}

	switch frame.Type {
	case "error":
		p.warn(fmt.Sprintf("[%s] %s", frame.Code, frame.Error))
	case "chats":
		p.chatTable(frame.Data)
	case "new_message":
		var payload struct {
			Session string `json:"session_id"`
			Message struct {
				Sender  string `json:"sender"`
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err == nil {
			line := fmt.Sprintf("[%s] %s: %s", shortID(payload.Session), payload.Message.Sender, payload.Message.Content)
			if p.colours {
				line = color.FgCyan.Render(line)
			}
			fmt.Println(line)
			return
		}
		fallthrough
	default:
		label := frame.Type
		if p.colours {
			label = color.FgGreen.Render(label)
		}
		fmt.Printf("%s %s\n", label, string(frame.Data))
	}
}

func (p *printer) chatTable(data json.RawMessage) {
	var chats []struct {
		Session      string   `json:"session"`
		Type         string   `json:"type"`
		Participants []string `json:"participants"`
		LastMessage  *struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"last_message"`
	}
	if err := json.Unmarshal(data, &chats); err != nil {
		fmt.Println(string(data))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Type", "Participants", "Last message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, chat := range chats {
		last := ""
		if chat.LastMessage != nil {
			last = fmt.Sprintf("%s: %s", chat.LastMessage.Sender, chat.LastMessage.Content)
		}
		table.Append([]string{shortID(chat.Session), chat.Type, strings.Join(chat.Participants, ", "), last})
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
