package bot

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"IdeaInbox/internal/adapter"
)

// Run starts the interactive stdin loop. Each line is turned into an
// inbound event for the configured local user.
func (b *Bot) Run() error {
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.RunSweeper(ctx, func(userID, text string) {
		fmt.Printf("Bot: %s\n", text)
	})

	fmt.Println("=== Idea Inbox ===")
	fmt.Printf("User: %s\n", b.config.AuthorizedUserID)
	fmt.Printf("Vault: %s\n", b.config.IdeasDir)
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		reply := b.HandleEvent(ctx, parseLine(input, b.config.AuthorizedUserID, time.Now()))
		if reply != "" {
			fmt.Printf("Bot: %s\n\n", reply)
		}
	}

	fmt.Println("Goodbye!")
	return nil
}

// RunGateway connects to the configured chat gateway and serves inbound
// events until the connection closes or ctx is cancelled.
func (b *Bot) RunGateway(ctx context.Context) error {
	defer b.Close()

	gw, err := adapter.Dial(b.config.GatewayURL, b.logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.RunSweeper(sweepCtx, func(userID, text string) {
		if err := gw.Send(userID, text); err != nil {
			b.logger.Warn("failed to send expiry notice", "error", err)
		}
	})

	return gw.Listen(ctx, func(ctx context.Context, in adapter.Inbound) string {
		return b.HandleEvent(ctx, eventFromInbound(in))
	})
}

// parseLine turns one REPL line into an inbound event.
func parseLine(input, userID string, now time.Time) Event {
	if strings.HasPrefix(input, "/") {
		parts := strings.Fields(input)
		return Event{
			Kind:   EventCommand,
			Name:   strings.TrimPrefix(parts[0], "/"),
			Body:   strings.TrimSpace(strings.TrimPrefix(input, parts[0])),
			UserID: userID,
			Time:   now,
		}
	}
	return Event{Kind: EventText, Body: input, UserID: userID, Time: now}
}

func eventFromInbound(in adapter.Inbound) Event {
	kind := EventText
	if in.Type == adapter.TypeCommand {
		kind = EventCommand
	}
	return Event{
		Kind:   kind,
		Name:   strings.TrimPrefix(in.Name, "/"),
		Body:   in.Body,
		UserID: in.UserID,
		Time:   in.Time,
	}
}
