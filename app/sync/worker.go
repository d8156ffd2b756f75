package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker owns all blocking fetch work. It consumes commands in order off a
// single channel and emits events the render loop applies to its session
// state. A batch refresh fans out inside the coordinator; the worker itself
// stays sequential so results arrive in command order.
type Worker struct {
	coordinator   *Coordinator
	flashDuration time.Duration
	commands      chan Command
	events        chan Event
	done          chan struct{}
	stopped       chan struct{}
}

func NewWorker(coordinator *Coordinator, flashDuration time.Duration) *Worker {
	return &Worker{
		coordinator:   coordinator,
		flashDuration: flashDuration,
		commands:      make(chan Command, 64),
		events:        make(chan Event, 256),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

func (w *Worker) Events() <-chan Event {
	return w.events
}

// Enqueue submits a command without blocking the caller.
func (w *Worker) Enqueue(cmd Command) error {
	select {
	case <-w.done:
		return fmt.Errorf("worker is stopped")
	default:
	}

	select {
	case w.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue is full")
	}
}

func (w *Worker) Start() {
	go w.run()
}

// Stop signals shutdown and waits for the in-flight command to finish. There
// is no mid-refresh cancellation; a refresh runs to completion or failure so
// database writes are never killed mid-transaction.
func (w *Worker) Stop() {
	close(w.done)
	<-w.stopped
}

func (w *Worker) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case cmd := <-w.commands:
			w.execute(cmd)
		}
	}
}

func (w *Worker) execute(cmd Command) {
	// Commands deliberately run under a background context: shutdown waits
	// for completion instead of cancelling (per-request timeouts still apply
	// inside the coordinator).
	ctx := context.Background()

	switch cmd := cmd.(type) {
	case RefreshFeedCommand:
		started := time.Now()
		w.emit(FlashSet{Message: "Refreshing feed..."})

		inserted, err := w.coordinator.RefreshFeed(ctx, cmd.FeedID)
		if err != nil {
			slog.Error("Feed refresh failed", "feed_id", cmd.FeedID, "error", err)
			w.emit(CommandFailed{Err: fmt.Errorf("failed to refresh feed %d: %w", cmd.FeedID, err)})
			return
		}

		duration := time.Since(started).Round(time.Millisecond)
		w.emit(FeedRefreshed{FeedID: cmd.FeedID, NewEntries: inserted, Duration: duration})
		w.flashTransient(fmt.Sprintf("Refreshed feed in %s", duration))

	case RefreshAllCommand:
		w.emit(FlashSet{Message: "Refreshing all feeds..."})

		result := w.coordinator.RefreshFeeds(ctx, cmd.FeedIDs)
		for _, failure := range result.Failures {
			slog.Error("Feed refresh failed", "feed_id", failure.FeedID, "error", failure.Err)
		}

		w.emit(result)
		w.flashTransient(fmt.Sprintf("Refreshed %d/%d feeds in %s",
			result.Succeeded, result.Attempted, result.Duration.Round(time.Millisecond)))

	case SubscribeCommand:
		started := time.Now()
		w.emit(FlashSet{Message: "Subscribing to feed..."})

		feedID, err := w.coordinator.Subscribe(ctx, cmd.URL)
		if err != nil {
			slog.Error("Subscribe failed", "url", cmd.URL, "error", err)
			w.emit(SubscribeFailed{URL: cmd.URL, Err: err})
			return
		}

		duration := time.Since(started).Round(time.Millisecond)
		w.emit(Subscribed{FeedID: feedID, Duration: duration})
		w.flashTransient(fmt.Sprintf("Subscribed in %s", duration))

	case ExtractContentCommand:
		w.emit(FlashSet{Message: "Fetching full content..."})

		if err := w.coordinator.ExtractContent(ctx, cmd.EntryID); err != nil {
			slog.Error("Content extraction failed", "entry_id", cmd.EntryID, "error", err)
			w.emit(CommandFailed{Err: fmt.Errorf("failed to extract content: %w", err)})
			return
		}

		w.emit(ContentExtracted{EntryID: cmd.EntryID})
		w.flashTransient("Fetched full content")

	case ClearFlashCommand:
		w.emit(FlashCleared{})
	}
}

// flashTransient shows a message and schedules its removal after the
// configured display duration.
func (w *Worker) flashTransient(message string) {
	w.emit(FlashSet{Message: message, Transient: true})
	time.AfterFunc(w.flashDuration, func() {
		if err := w.Enqueue(ClearFlashCommand{}); err != nil {
			slog.Debug("Skipping flash clear", "error", err)
		}
	})
}

func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		slog.Warn("Event channel full, dropping event", "event", fmt.Sprintf("%T", ev))
	}
}
