package bot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"IdeaInbox/internal/cache"
	"IdeaInbox/internal/config"
	"IdeaInbox/internal/journal"
	"IdeaInbox/internal/note"
	"IdeaInbox/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const testUser = "user-1"

var t0 = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

// newTestBot wires a Bot by hand so tests skip the file-logger and
// telemetry exporter setup done by New.
func newTestBot(t *testing.T) *Bot {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.AuthorizedUserID = testUser
	cfg.IdeasDir = filepath.Join(dir, "ideas")
	cfg.StatePath = filepath.Join(dir, "state", "sessions.json")
	cfg.JournalPath = filepath.Join(dir, "state", "journal.db")

	store := session.NewFileStore(cfg.StatePath, logger)
	manager, err := session.NewManager(cfg.AuthorizedUserID, cfg.CaptureTimeout(), store, logger)
	require.NoError(t, err)

	jnl, err := journal.Open(cfg.JournalPath)
	require.NoError(t, err)

	b := &Bot{
		config:  cfg,
		manager: manager,
		writer:  note.NewWriter(cfg.IdeasDir, cfg.Source, logger),
		journal: jnl,
		logger:  logger,
		tracer:  tracenoop.NewTracerProvider().Tracer("test"),
		meter:   metricnoop.NewMeterProvider().Meter("test"),
		seen:    cache.NewRecent(seenCapacity),
	}
	t.Cleanup(b.Close)
	return b
}

func command(name string, at time.Time) Event {
	return Event{Kind: EventCommand, Name: name, UserID: testUser, Time: at}
}

func text(body string, at time.Time) Event {
	return Event{Kind: EventText, Body: body, UserID: testUser, Time: at}
}

func TestIdeaCommandThenTextSavesNote(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	reply := b.HandleEvent(ctx, command("idea", t0))
	assert.Contains(t, reply, "Send your idea as one message")

	reply = b.HandleEvent(ctx, text("hello", t0.Add(30*time.Second)))
	assert.Equal(t, `Saved "hello" as 2026-08-31_100030_hello.md`, reply)

	raw, err := os.ReadFile(filepath.Join(b.config.IdeasDir, "2026-08-31_100030_hello.md"))
	require.NoError(t, err)
	_, body, found := strings.Cut(string(raw), "---\n\n")
	require.True(t, found)
	assert.Equal(t, "hello\n", body)

	last, err := b.journal.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "hello", last.Title)
}

func TestTextWithoutSessionIsSilent(t *testing.T) {
	b := newTestBot(t)

	reply := b.HandleEvent(context.Background(), text("just chatting", t0))
	assert.Empty(t, reply)

	_, err := os.Stat(b.config.IdeasDir)
	assert.True(t, os.IsNotExist(err), "no note should have been written")
}

func TestLateTextIsSilent(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.HandleEvent(ctx, command("idea", t0))

	reply := b.HandleEvent(ctx, text("too late", t0.Add(3*time.Minute)))
	assert.Empty(t, reply)

	_, err := os.Stat(b.config.IdeasDir)
	assert.True(t, os.IsNotExist(err))
}

func TestDuplicateDeliveryIsDropped(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.HandleEvent(ctx, command("idea", t0))

	ev := text("one idea", t0.Add(10*time.Second))
	first := b.HandleEvent(ctx, ev)
	assert.Contains(t, first, "Saved")

	second := b.HandleEvent(ctx, ev)
	assert.Empty(t, second)

	entries, err := os.ReadDir(b.config.IdeasDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUnauthorizedUserGetsNoReply(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	reply := b.HandleEvent(ctx, Event{Kind: EventCommand, Name: "idea", UserID: "intruder", Time: t0})
	assert.Empty(t, reply)

	reply = b.HandleEvent(ctx, Event{Kind: EventText, Body: "sneaky", UserID: "intruder", Time: t0.Add(time.Second)})
	assert.Empty(t, reply)

	reply = b.HandleEvent(ctx, Event{Kind: EventCommand, Name: "status", UserID: "intruder", Time: t0.Add(2 * time.Second)})
	assert.Empty(t, reply)

	// Silent even with an empty journal, which must not be disclosed.
	reply = b.HandleEvent(ctx, Event{Kind: EventCommand, Name: "enrich", UserID: "intruder", Time: t0.Add(3 * time.Second)})
	assert.Empty(t, reply)
}

func TestCancelFlow(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.HandleEvent(ctx, command("idea", t0))

	reply := b.HandleEvent(ctx, command("cancel", t0.Add(10*time.Second)))
	assert.Equal(t, "Cancelled.", reply)

	reply = b.HandleEvent(ctx, text("after cancel", t0.Add(20*time.Second)))
	assert.Empty(t, reply)

	reply = b.HandleEvent(ctx, command("cancel", t0.Add(30*time.Second)))
	assert.Equal(t, "Nothing to cancel.", reply)
}

func TestStatusReflectsPendingSession(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	reply := b.HandleEvent(ctx, command("status", t0))
	assert.Equal(t, "Nothing pending.", reply)

	b.HandleEvent(ctx, command("idea", t0.Add(time.Second)))

	reply = b.HandleEvent(ctx, command("status", t0.Add(2*time.Second)))
	assert.Contains(t, reply, "capture pending until")
}

func TestEnrichAppendsToLastIdea(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.HandleEvent(ctx, command("idea", t0))
	b.HandleEvent(ctx, text("plant timelapse rig", t0.Add(10*time.Second)))

	reply := b.HandleEvent(ctx, command("enrich", t0.Add(time.Minute)))
	assert.Contains(t, reply, `"plant timelapse rig"`)

	reply = b.HandleEvent(ctx, text("use the old tripod", t0.Add(70*time.Second)))
	assert.Equal(t, `Added to "plant timelapse rig".`, reply)

	raw, err := os.ReadFile(filepath.Join(b.config.IdeasDir, "2026-08-31_100010_plant-timelapse-rig.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "## Follow-up (2026-08-31 10:01)")
	assert.Contains(t, string(raw), "use the old tripod")
}

func TestEnrichWithEmptyJournal(t *testing.T) {
	b := newTestBot(t)

	reply := b.HandleEvent(context.Background(), command("enrich", t0))
	assert.Equal(t, "No idea to enrich yet. Start with /idea.", reply)
}

func TestRecentListsCaptures(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	reply := b.HandleEvent(ctx, command("recent", t0))
	assert.Equal(t, "No ideas captured yet.", reply)

	b.HandleEvent(ctx, command("idea", t0.Add(time.Second)))
	b.HandleEvent(ctx, text("first idea", t0.Add(2*time.Second)))

	reply = b.HandleEvent(ctx, command("recent", t0.Add(3*time.Second)))
	assert.Contains(t, reply, "1. first idea")
}

func TestHelpListsCommands(t *testing.T) {
	b := newTestBot(t)

	reply := b.HandleEvent(context.Background(), command("help", t0))
	for _, cmd := range []string{"/idea", "/cancel", "/status", "/enrich", "/recent"} {
		assert.Contains(t, reply, cmd)
	}
}

func TestUnknownCommandIsSilent(t *testing.T) {
	b := newTestBot(t)

	reply := b.HandleEvent(context.Background(), command("bogus", t0))
	assert.Empty(t, reply)
}
