package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"IdeaInbox/internal/cache"
	"IdeaInbox/internal/config"
	"IdeaInbox/internal/journal"
	"IdeaInbox/internal/note"
	"IdeaInbox/internal/session"
	"IdeaInbox/internal/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Event kinds delivered by the chat adapter.
const (
	EventCommand = "command"
	EventText    = "text"
)

// seenCapacity bounds the duplicate-delivery fingerprint set per generation.
const seenCapacity = 4096

// Event is one inbound chat item. Commands carry the name without the
// leading slash; plain messages carry the body.
type Event struct {
	Kind   string
	Name   string
	Body   string
	UserID string
	Time   time.Time
}

// Bot wires the session manager, note writer and capture journal behind
// the chat adapter. It decides per event: start, capture, cancel or ignore.
type Bot struct {
	config  config.Config
	manager *session.Manager
	writer  *note.Writer
	journal *journal.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	seen      *cache.Recent // inbound event fingerprints, for duplicate delivery
	cleanup   func()
	closeOnce sync.Once
}

// New creates a fully wired Bot from configuration.
func New(cfg config.Config) (*Bot, error) {
	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture journal: %w", err)
	}

	store := session.NewFileStore(cfg.StatePath, logger)
	manager, err := session.NewManager(cfg.AuthorizedUserID, cfg.CaptureTimeout(), store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	return &Bot{
		config:  cfg,
		manager: manager,
		writer:  note.NewWriter(cfg.IdeasDir, cfg.Source, logger),
		journal: jnl,
		logger:  logger,
		tracer:  tracer,
		meter:   meter,
		seen:    cache.NewRecent(seenCapacity),
		cleanup: cleanup,
	}, nil
}

// HandleEvent routes one inbound chat event and returns the reply text.
// An empty reply means the bot stays silent.
func (b *Bot) HandleEvent(ctx context.Context, ev Event) string {
	ctx, span := b.tracer.Start(ctx, "handle_event")
	defer span.End()

	key := cache.EventKey(ev.UserID, ev.Kind+":"+ev.Name+":"+ev.Body, ev.Time)
	if b.seen.Seen(key) {
		b.logger.Debug("dropping duplicate event", "user_id", ev.UserID)
		return ""
	}

	switch ev.Kind {
	case EventCommand:
		return b.handleCommand(ctx, ev)
	case EventText:
		return b.handleText(ctx, ev)
	default:
		return ""
	}
}

// handleCommand handles slash commands
func (b *Bot) handleCommand(ctx context.Context, ev Event) string {
	switch ev.Name {
	case "idea", "start":
		_, err := b.manager.StartCapture(ev.UserID, ev.Time)
		if errors.Is(err, session.ErrUnauthorized) {
			return ""
		}
		if err != nil {
			b.logger.Error("failed to start capture", "error", err)
			return "Could not start a capture, try again."
		}
		return fmt.Sprintf("Send your idea as one message within %s. /cancel to abort.", b.manager.Timeout())

	case "cancel":
		err := b.manager.Cancel(ev.UserID, ev.Time)
		switch {
		case errors.Is(err, session.ErrUnauthorized):
			return ""
		case errors.Is(err, session.ErrNoPendingSession):
			return "Nothing to cancel."
		case err != nil:
			b.logger.Error("failed to cancel", "error", err)
			return ""
		}
		return "Cancelled."

	case "enrich":
		if ev.UserID != b.config.AuthorizedUserID {
			return ""
		}
		last, err := b.journal.Last()
		if err != nil {
			b.logger.Error("failed to read journal", "error", err)
			return "Could not check the journal, try again."
		}
		if last == nil {
			return "No idea to enrich yet. Start with /idea."
		}
		_, err = b.manager.StartEnrich(ev.UserID, ev.Time)
		if errors.Is(err, session.ErrUnauthorized) {
			return ""
		}
		if err != nil {
			b.logger.Error("failed to start enrichment", "error", err)
			return "Could not start enrichment, try again."
		}
		return fmt.Sprintf("Reply with extra context for %q within %s. /cancel to abort.", last.Title, b.manager.Timeout())

	case "status":
		if ev.UserID != b.config.AuthorizedUserID {
			return ""
		}
		return b.statusText(ev)

	case "recent":
		if ev.UserID != b.config.AuthorizedUserID {
			return ""
		}
		entries, err := b.journal.Recent(5)
		if err != nil {
			b.logger.Error("failed to read journal", "error", err)
			return "Could not check the journal, try again."
		}
		if len(entries) == 0 {
			return "No ideas captured yet."
		}
		var sb strings.Builder
		for i, e := range entries {
			sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, e.Title, e.Filename))
		}
		return strings.TrimRight(sb.String(), "\n")

	case "help":
		return strings.Join([]string{
			"Available commands:",
			"  /idea    - Start a capture; your next message becomes a note",
			"  /cancel  - Cancel the pending capture",
			"  /status  - Show pending capture and the last saved idea",
			"  /enrich  - Append your next message to the last saved idea",
			"  /recent  - List recently saved ideas",
			"  /help    - Show this help message",
		}, "\n")

	default:
		return ""
	}
}

func (b *Bot) statusText(ev Event) string {
	var sb strings.Builder
	if sess, ok := b.manager.Pending(ev.UserID, ev.Time); ok {
		sb.WriteString(fmt.Sprintf("%s pending until %s.", sess.Kind, sess.ExpiresAt.Format(time.RFC3339)))
	} else {
		sb.WriteString("Nothing pending.")
	}
	last, err := b.journal.Last()
	if err != nil {
		b.logger.Warn("failed to read journal", "error", err)
	} else if last != nil {
		sb.WriteString(fmt.Sprintf("\nLast idea: %s (%s)", last.Title, last.Filename))
	}
	return sb.String()
}

// handleText evaluates a plain message against the pending session. A
// message with no open window, or one arriving too late, is ordinary chat:
// the bot stays silent and captures nothing.
func (b *Bot) handleText(ctx context.Context, ev Event) string {
	capture, err := b.manager.Submit(ev.UserID, ev.Body, ev.Time)
	switch {
	case errors.Is(err, session.ErrExpired):
		b.count(ctx, "ideainbox.expired")
		return ""
	case errors.Is(err, session.ErrNoPendingSession), errors.Is(err, session.ErrUnauthorized):
		b.count(ctx, "ideainbox.ignored")
		return ""
	case err != nil:
		b.logger.Error("failed to evaluate message", "error", err)
		return ""
	}

	if capture.Kind == session.KindEnrich {
		return b.commitEnrichment(ctx, capture)
	}
	return b.commitCapture(ctx, capture)
}

// commitCapture writes the captured text as a new idea note. On failure a
// fresh window is reopened so the text is not silently lost.
func (b *Bot) commitCapture(ctx context.Context, capture *session.Capture) string {
	ctx, span := b.tracer.Start(ctx, "note_write")
	defer span.End()

	start := time.Now()
	n, err := b.writer.Write(note.Request{Text: capture.Text, CapturedAt: capture.CapturedAt})
	if err != nil {
		b.logger.Error("failed to write note", "error", err)
		b.count(ctx, "ideainbox.write_errors")
		if _, rerr := b.manager.StartCapture(capture.UserID, capture.CapturedAt); rerr != nil {
			b.logger.Error("failed to reopen capture", "error", rerr)
		}
		return "Saving failed, send your idea again."
	}

	histogram, herr := b.meter.Float64Histogram(
		"note.write.duration",
		metric.WithDescription("Note write duration in milliseconds"),
	)
	if herr == nil {
		histogram.Record(ctx, float64(time.Since(start).Milliseconds()))
	}

	entry := journal.Entry{ID: n.ID, Filename: n.Filename, Title: n.Title, CapturedAt: n.CreatedAt}
	if err := b.journal.Record(entry); err != nil {
		b.logger.Warn("failed to record capture in journal", "error", err)
	}

	b.count(ctx, "ideainbox.captures")
	return fmt.Sprintf("Saved %q as %s", n.Title, n.Filename)
}

// commitEnrichment appends the captured text to the most recent idea note.
func (b *Bot) commitEnrichment(ctx context.Context, capture *session.Capture) string {
	ctx, span := b.tracer.Start(ctx, "note_append")
	defer span.End()

	last, err := b.journal.Last()
	if err != nil || last == nil {
		b.logger.Error("enrichment target missing", "error", err)
		return "Could not find the idea to enrich."
	}

	block := fmt.Sprintf("## Follow-up (%s)\n\n%s", capture.CapturedAt.Format("2006-01-02 15:04"), capture.Text)
	if err := b.writer.Append(last.Filename, block); err != nil {
		b.logger.Error("failed to append enrichment", "error", err)
		b.count(ctx, "ideainbox.write_errors")
		if _, rerr := b.manager.StartEnrich(capture.UserID, capture.CapturedAt); rerr != nil {
			b.logger.Error("failed to reopen enrichment", "error", rerr)
		}
		return "Saving failed, send it again."
	}

	b.count(ctx, "ideainbox.enrichments")
	return fmt.Sprintf("Added to %q.", last.Title)
}

// RunSweeper retires expired sessions on a fixed interval until ctx is
// done. Expiry is silent unless notify_expiry is configured; notify relays
// the message through the active adapter.
func (b *Bot) RunSweeper(ctx context.Context, notify func(userID, text string)) {
	ticker := time.NewTicker(b.config.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, userID := range b.manager.SweepExpired(now) {
				b.count(ctx, "ideainbox.sessions_expired")
				if b.config.NotifyExpiry && notify != nil {
					notify(userID, "Capture window expired.")
				}
			}
		}
	}
}

// count increments a named counter metric by one.
func (b *Bot) count(ctx context.Context, name string) {
	counter, err := b.meter.Int64Counter(name)
	if err != nil {
		b.logger.Warn("failed to create counter", "name", name, "error", err)
		return
	}
	counter.Add(ctx, 1)
}

// Close flushes telemetry and closes the journal.
func (b *Bot) Close() {
	b.closeOnce.Do(func() {
		if err := b.journal.Close(); err != nil {
			b.logger.Warn("failed to close journal", "error", err)
		}
		if b.cleanup != nil {
			b.cleanup()
		}
	})
}
