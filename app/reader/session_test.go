package reader

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brookreader/brook/app/database"
	"github.com/brookreader/brook/app/sync"
)

// fakeStore backs both repository interfaces with in-memory slices.
type fakeStore struct {
	feeds   []database.Feed
	entries map[int64][]database.Entry
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[int64][]database.Entry), nextID: 1}
}

func (s *fakeStore) addFeed(title string) int64 {
	id := s.nextID
	s.nextID++
	s.feeds = append(s.feeds, database.Feed{ID: id, Title: &title, SourceURL: "https://example.com/" + title})
	return id
}

func (s *fakeStore) addEntry(feedID int64, title string, content, summary *string) int64 {
	id := s.nextID
	s.nextID++
	s.entries[feedID] = append(s.entries[feedID], database.Entry{
		ID: id, FeedID: feedID, Title: &title, Content: content, Summary: summary,
	})
	return id
}

func (s *fakeStore) CreateFeed(feed database.Feed) (int64, error) {
	id := s.nextID
	s.nextID++
	feed.ID = id
	s.feeds = append(s.feeds, feed)
	return id, nil
}

func (s *fakeStore) ListFeeds() ([]database.Feed, error) {
	return append([]database.Feed(nil), s.feeds...), nil
}

func (s *fakeStore) GetFeed(feedID int64) (database.Feed, error) {
	for _, f := range s.feeds {
		if f.ID == feedID {
			return f, nil
		}
	}
	return database.Feed{}, fmt.Errorf("feed %d: %w", feedID, database.ErrNotFound)
}

func (s *fakeStore) GetFeedCount() (int, error) { return len(s.feeds), nil }

func (s *fakeStore) TouchRefreshedAt(feedID int64, refreshedAt time.Time) error { return nil }

func (s *fakeStore) DeleteFeed(feedID int64) error {
	for i, f := range s.feeds {
		if f.ID == feedID {
			s.feeds = append(s.feeds[:i], s.feeds[i+1:]...)
			delete(s.entries, feedID)
			return nil
		}
	}
	return fmt.Errorf("feed %d: %w", feedID, database.ErrNotFound)
}

func (s *fakeStore) ListEntries(feedID int64, mode database.ReadMode) ([]database.Entry, error) {
	var out []database.Entry
	for _, e := range s.entries[feedID] {
		switch mode {
		case database.ShowUnread:
			if e.Read() {
				continue
			}
		case database.ShowRead:
			if !e.Read() {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) ListEntryLinks(feedID int64, mode database.ReadMode) (map[string]struct{}, error) {
	links := make(map[string]struct{})
	entries, _ := s.ListEntries(feedID, mode)
	for _, e := range entries {
		if e.Link != nil {
			links[*e.Link] = struct{}{}
		}
	}
	return links, nil
}

func (s *fakeStore) GetEntry(entryID int64) (database.Entry, error) {
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.ID == entryID {
				return e, nil
			}
		}
	}
	return database.Entry{}, fmt.Errorf("entry %d: %w", entryID, database.ErrNotFound)
}

func (s *fakeStore) BulkInsertEntries(feedID int64, entries []database.Entry) (int, error) {
	for _, e := range entries {
		e.ID = s.nextID
		s.nextID++
		e.FeedID = feedID
		s.entries[feedID] = append(s.entries[feedID], e)
	}
	return len(entries), nil
}

func (s *fakeStore) SetReadAt(entryID int64, readAt *time.Time) error {
	for feedID, entries := range s.entries {
		for i, e := range entries {
			if e.ID == entryID {
				s.entries[feedID][i].ReadAt = readAt
				return nil
			}
		}
	}
	return fmt.Errorf("entry %d: %w", entryID, database.ErrNotFound)
}

func (s *fakeStore) UpdateEntryContent(entryID int64, content string) error {
	for feedID, entries := range s.entries {
		for i, e := range entries {
			if e.ID == entryID {
				s.entries[feedID][i].Content = &content
				return nil
			}
		}
	}
	return fmt.Errorf("entry %d: %w", entryID, database.ErrNotFound)
}

type fakeSink struct {
	commands []sync.Command
	err      error
}

func (s *fakeSink) Enqueue(cmd sync.Command) error {
	if s.err != nil {
		return s.err
	}
	s.commands = append(s.commands, cmd)
	return nil
}

func newTestSession(t *testing.T, store *fakeStore, sink *fakeSink) *Session {
	t.Helper()

	session, err := NewSession(store, store, sink, nil, 80)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

func contentPtr(s string) *string { return &s }

func TestSessionInitialState(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("first")
	store.addFeed("second")
	store.addEntry(feedID, "entry", nil, contentPtr("summary"))

	session := newTestSession(t, store, &fakeSink{})

	if session.Selected() != SelectedFeeds {
		t.Errorf("Expected feeds selected, got %s", session.Selected())
	}
	if session.Mode() != ModeNormal {
		t.Error("Expected normal mode")
	}
	if session.ReadMode() != database.ShowUnread {
		t.Errorf("Expected unread mode, got %s", session.ReadMode())
	}
	if session.CurrentFeed() == nil || session.CurrentFeed().ID != feedID {
		t.Error("Expected the first feed to be current")
	}
	if len(session.Entries()) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(session.Entries()))
	}
}

func TestSessionFeedNavigationChangesEntries(t *testing.T) {
	store := newFakeStore()
	first := store.addFeed("first")
	second := store.addFeed("second")
	store.addEntry(first, "a", nil, nil)
	store.addEntry(second, "b", nil, nil)
	store.addEntry(second, "c", nil, nil)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.OnDown(); err != nil {
		t.Fatalf("OnDown failed: %v", err)
	}
	if session.CurrentFeed().ID != second {
		t.Errorf("Expected feed %d current, got %d", second, session.CurrentFeed().ID)
	}
	if len(session.Entries()) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(session.Entries()))
	}

	// Wrap back to the first feed.
	if err := session.OnDown(); err != nil {
		t.Fatalf("OnDown failed: %v", err)
	}
	if session.CurrentFeed().ID != first {
		t.Errorf("Expected wrap to feed %d, got %d", first, session.CurrentFeed().ID)
	}
}

func TestSessionOpenEntryPrefersContent(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	store.addEntry(feedID, "both", contentPtr("<p>content</p>"), contentPtr("<p>summary</p>"))

	session := newTestSession(t, store, &fakeSink{})

	if err := session.OnRight(); err != nil {
		t.Fatalf("OnRight failed: %v", err)
	}
	if session.Selected() != SelectedEntries {
		t.Fatalf("Expected entries selected, got %s", session.Selected())
	}

	if err := session.OnEnter(); err != nil {
		t.Fatalf("OnEnter failed: %v", err)
	}
	if session.Selected() != SelectedEntry {
		t.Fatalf("Expected entry selected, got %s", session.Selected())
	}
	if session.EntryText() != "<p>content</p>" {
		t.Errorf("Expected content to win over summary, got '%s'", session.EntryText())
	}

	if err := session.OnLeft(); err != nil {
		t.Fatalf("OnLeft failed: %v", err)
	}
	if session.Selected() != SelectedEntries {
		t.Errorf("Expected entries selected after close, got %s", session.Selected())
	}
	if session.OpenEntry() != nil {
		t.Error("Expected open entry cleared after close")
	}
}

func TestSessionOpenEntryPlaceholder(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	store.addEntry(feedID, "bare", nil, nil)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.OnRight(); err != nil {
		t.Fatalf("OnRight failed: %v", err)
	}
	if err := session.OnEnter(); err != nil {
		t.Fatalf("OnEnter failed: %v", err)
	}

	if session.EntryText() != "No content or description tag provided." {
		t.Errorf("Expected placeholder, got '%s'", session.EntryText())
	}
}

func TestSessionScrollSaturates(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	body := strings.Repeat("line\n", 9) + "line"
	store.addEntry(feedID, "long", contentPtr(body), nil)

	session := newTestSession(t, store, &fakeSink{})
	session.SetPageHeight(4)

	if err := session.OnRight(); err != nil {
		t.Fatalf("OnRight failed: %v", err)
	}
	if err := session.OnEnter(); err != nil {
		t.Fatalf("OnEnter failed: %v", err)
	}

	// Up at the top stays at the top.
	if err := session.OnUp(); err != nil {
		t.Fatalf("OnUp failed: %v", err)
	}
	if session.Scroll() != 0 {
		t.Errorf("Expected scroll 0, got %d", session.Scroll())
	}

	for i := 0; i < 30; i++ {
		if err := session.OnDown(); err != nil {
			t.Fatalf("OnDown failed: %v", err)
		}
	}
	if session.Scroll() != 9 {
		t.Errorf("Expected scroll to saturate at 9, got %d", session.Scroll())
	}

	session.OnPageUp()
	if session.Scroll() != 5 {
		t.Errorf("Expected scroll 5 after page up, got %d", session.Scroll())
	}

	session.OnPageDown()
	session.OnPageDown()
	if session.Scroll() != 9 {
		t.Errorf("Expected page down to saturate at 9, got %d", session.Scroll())
	}
}

func TestSessionToggleReadRemovesFromUnreadListing(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	store.addEntry(feedID, "one", nil, nil)
	store.addEntry(feedID, "two", nil, nil)
	store.addEntry(feedID, "three", nil, nil)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.OnRight(); err != nil {
		t.Fatalf("OnRight failed: %v", err)
	}
	if err := session.OnDown(); err != nil {
		t.Fatalf("OnDown failed: %v", err)
	}

	if err := session.ToggleRead(); err != nil {
		t.Fatalf("ToggleRead failed: %v", err)
	}

	entries := session.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 unread entries, got %d", len(entries))
	}
	for _, e := range entries {
		if *e.Title == "two" {
			t.Error("Expected 'two' to drop out of the unread listing")
		}
	}

	// Highlight clamps to the same position in the shorter list.
	if session.EntryIndex() != 1 {
		t.Errorf("Expected highlight at 1, got %d", session.EntryIndex())
	}
}

func TestSessionToggleReadFromOpenEntryReturnsToList(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	body := strings.Repeat("line\n", 5)
	store.addEntry(feedID, "open", contentPtr(body), nil)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.OnRight(); err != nil {
		t.Fatalf("OnRight failed: %v", err)
	}
	if err := session.OnEnter(); err != nil {
		t.Fatalf("OnEnter failed: %v", err)
	}
	if err := session.OnDown(); err != nil {
		t.Fatalf("OnDown failed: %v", err)
	}
	if session.Scroll() == 0 {
		t.Fatal("Expected scroll to have moved")
	}

	if err := session.ToggleRead(); err != nil {
		t.Fatalf("ToggleRead failed: %v", err)
	}

	if session.Selected() != SelectedEntries {
		t.Errorf("Expected return to entry list, got %s", session.Selected())
	}
	if session.Scroll() != 0 {
		t.Errorf("Expected scroll reset, got %d", session.Scroll())
	}
	if session.OpenEntry() != nil {
		t.Error("Expected open entry cleared")
	}
	if len(session.Entries()) != 0 {
		t.Errorf("Expected empty unread listing, got %d entries", len(session.Entries()))
	}
}

func TestSessionToggleReadMode(t *testing.T) {
	store := newFakeStore()
	feedID := store.addFeed("feed")
	readID := store.addEntry(feedID, "read", nil, nil)
	store.addEntry(feedID, "unread", nil, nil)
	now := time.Now().UTC()
	store.SetReadAt(readID, &now)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.ToggleReadMode(); err != nil {
		t.Fatalf("ToggleReadMode failed: %v", err)
	}
	if session.ReadMode() != database.ShowRead {
		t.Errorf("Expected read mode, got %s", session.ReadMode())
	}
	if len(session.Entries()) != 1 || *session.Entries()[0].Title != "read" {
		t.Errorf("Expected only the read entry, got %d entries", len(session.Entries()))
	}
	if session.EntryIndex() != 0 {
		t.Errorf("Expected highlight reset to 0, got %d", session.EntryIndex())
	}

	if err := session.ToggleReadMode(); err != nil {
		t.Fatalf("ToggleReadMode failed: %v", err)
	}
	if session.ReadMode() != database.ShowUnread {
		t.Errorf("Expected unread mode, got %s", session.ReadMode())
	}
}

func TestSessionDeleteFeed(t *testing.T) {
	store := newFakeStore()
	first := store.addFeed("first")
	second := store.addFeed("second")
	store.addEntry(first, "a", nil, nil)

	session := newTestSession(t, store, &fakeSink{})

	if err := session.DeleteFeed(); err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}

	feeds := session.Feeds()
	if len(feeds) != 1 || feeds[0].ID != second {
		t.Errorf("Expected only feed %d to remain", second)
	}
	if session.CurrentFeed() == nil || session.CurrentFeed().ID != second {
		t.Error("Expected the remaining feed to become current")
	}
}

func TestSessionSubscriptionFlow(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	session := newTestSession(t, store, sink)

	session.StartEditing()
	if session.Mode() != ModeEditing {
		t.Fatal("Expected editing mode")
	}

	for _, r := range "https://example.com/feed.xmll" {
		session.InputRune(r)
	}
	session.InputBackspace()
	if session.Input() != "https://example.com/feed.xml" {
		t.Errorf("Unexpected input buffer: '%s'", session.Input())
	}

	session.SubmitSubscription()
	if len(sink.commands) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(sink.commands))
	}
	cmd, ok := sink.commands[0].(sync.SubscribeCommand)
	if !ok || cmd.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected subscribe command with URL, got %+v", sink.commands[0])
	}

	// Failure preserves the buffer for correction.
	if err := session.Apply(sync.SubscribeFailed{URL: cmd.URL, Err: errors.New("boom")}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if session.Input() != "https://example.com/feed.xml" {
		t.Error("Expected input buffer preserved after failure")
	}
	if !session.HasErrors() {
		t.Error("Expected failure surfaced as error")
	}

	// Success clears the buffer and leaves editing mode.
	store.addFeed("subscribed")
	if err := session.Apply(sync.Subscribed{FeedID: 1}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if session.Input() != "" {
		t.Errorf("Expected input buffer cleared, got '%s'", session.Input())
	}
	if session.Mode() != ModeNormal {
		t.Error("Expected normal mode after subscribe")
	}
	if len(session.Feeds()) != 1 {
		t.Errorf("Expected feed list reloaded, got %d feeds", len(session.Feeds()))
	}
}

func TestSessionRefreshCommands(t *testing.T) {
	store := newFakeStore()
	store.addFeed("one")
	store.addFeed("two")
	sink := &fakeSink{}
	session := newTestSession(t, store, sink)

	session.RefreshCurrentFeed()
	session.RefreshAllFeeds()

	if len(sink.commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(sink.commands))
	}
	if _, ok := sink.commands[0].(sync.RefreshFeedCommand); !ok {
		t.Errorf("Expected RefreshFeedCommand, got %T", sink.commands[0])
	}
	all, ok := sink.commands[1].(sync.RefreshAllCommand)
	if !ok {
		t.Fatalf("Expected RefreshAllCommand, got %T", sink.commands[1])
	}
	if len(all.FeedIDs) != 2 {
		t.Errorf("Expected 2 feed ids, got %d", len(all.FeedIDs))
	}
}

func TestSessionEnqueueFailureSurfacesError(t *testing.T) {
	store := newFakeStore()
	store.addFeed("one")
	sink := &fakeSink{err: errors.New("queue full")}
	session := newTestSession(t, store, sink)

	session.RefreshCurrentFeed()

	if !session.HasErrors() {
		t.Fatal("Expected enqueue failure to surface as error")
	}

	session.DismissErrors()
	if session.HasErrors() {
		t.Error("Expected errors dismissed")
	}
}

func TestSessionApplyFlashEvents(t *testing.T) {
	store := newFakeStore()
	session := newTestSession(t, store, &fakeSink{})

	if err := session.Apply(sync.FlashSet{Message: "Refreshing..."}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if session.Flash() != "Refreshing..." {
		t.Errorf("Expected flash set, got '%s'", session.Flash())
	}

	if err := session.Apply(sync.FlashCleared{}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if session.Flash() != "" {
		t.Errorf("Expected flash cleared, got '%s'", session.Flash())
	}
}

func TestSessionApplyFeedRefreshed(t *testing.T) {
	store := newFakeStore()
	current := store.addFeed("current")
	other := store.addFeed("other")
	session := newTestSession(t, store, &fakeSink{})

	// New entry for the highlighted feed appears on refresh.
	store.addEntry(current, "fresh", nil, nil)
	if err := session.Apply(sync.FeedRefreshed{FeedID: current, NewEntries: 1}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(session.Entries()) != 1 {
		t.Errorf("Expected 1 entry after refresh, got %d", len(session.Entries()))
	}

	// A background feed's result changes nothing visible.
	store.addEntry(other, "hidden", nil, nil)
	if err := session.Apply(sync.FeedRefreshed{FeedID: other, NewEntries: 1}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(session.Entries()) != 1 {
		t.Errorf("Expected listing unchanged, got %d entries", len(session.Entries()))
	}
}

func TestSessionApplyBatchFailures(t *testing.T) {
	store := newFakeStore()
	store.addFeed("one")
	session := newTestSession(t, store, &fakeSink{})

	result := sync.BatchRefreshed{
		Attempted: 2,
		Succeeded: 1,
		Failures:  []sync.FeedFailure{{FeedID: 2, Err: errors.New("timeout")}},
	}
	if err := session.Apply(result); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(session.Errors()) != 1 {
		t.Errorf("Expected 1 error, got %d", len(session.Errors()))
	}
}
