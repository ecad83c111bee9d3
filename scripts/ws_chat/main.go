// Command ws_chat is a terminal client for the chat protocol over the /ws bridge.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"

	"github.com/vovakirdan/roomchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8081/ws", "WebSocket address")
	name := flag.String("name", "cli-user", "initial display name")
	user := flag.String("user", "", "log in as this account on connect")
	pass := flag.String("pass", "", "password for -user")
	register := flag.Bool("register", false, "register -user instead of logging in")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(line string) error {
		return conn.Write(ctx, websocket.MessageText, []byte(line))
	}

	if err := send(*name); err != nil {
		return fmt.Errorf("send name: %w", err)
	}
	if *user != "" {
		verb := "/login"
		if *register {
			verb = "/register"
		}
		if err := send(fmt.Sprintf("%s %s %s", verb, *user, *pass)); err != nil {
			return fmt.Errorf("send %s: %w", verb, err)
		}
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *name)
	fmt.Println("Type messages or /commands and press Enter. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, send)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		fmt.Println(render(string(data)))
	}
}

// render makes private messages and user lists easier to spot.
func render(line string) string {
	switch {
	case strings.HasPrefix(line, proto.PrefixPrivateSelf):
		return "[to " + strings.Replace(strings.TrimPrefix(line, proto.PrefixPrivateSelf), ":", "] ", 1)
	case strings.HasPrefix(line, proto.PrefixPrivate):
		return "[from " + strings.Replace(strings.TrimPrefix(line, proto.PrefixPrivate), ":", "] ", 1)
	case strings.HasPrefix(line, proto.PrefixUserList):
		return "online: " + strings.ReplaceAll(strings.TrimPrefix(line, proto.PrefixUserList), ",", ", ")
	default:
		return line
	}
}

func writeLoop(ctx context.Context, send func(string) error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
