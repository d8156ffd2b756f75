package reader

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/brookreader/brook/app/database"
	"github.com/brookreader/brook/app/sync"
)

// noContentPlaceholder is rendered when an entry provides neither content nor
// a summary. The distinction between "explicitly empty" and "not provided" is
// preserved in the store; the placeholder exists only at render time.
const noContentPlaceholder = "No content or description tag provided."

// Renderer turns entry HTML into displayable text. The terminal front end
// supplies the real implementation (wrapping, layout); the session only caches
// its output and tracks scroll position.
type Renderer interface {
	Render(html string, lineLength int) string
}

// CommandSink accepts commands for the synchronization worker. Session never
// blocks on network I/O; everything that fetches goes through here.
type CommandSink interface {
	Enqueue(cmd sync.Command) error
}

// Session is the in-memory modal navigation state: which level has focus,
// the materialized feed and entry lists, the open entry's rendered body, and
// the subscription input buffer. It is owned exclusively by the render loop;
// the synchronization worker communicates with it only through events passed
// to Apply.
type Session struct {
	feedRepo  database.FeedRepository
	entryRepo database.EntryRepository
	commands  CommandSink
	renderer  Renderer

	feeds        *List[database.Feed]
	entries      *List[database.Entry]
	currentFeed  *database.Feed
	currentEntry *database.Entry
	openEntry    *database.Entry
	entryPos     int

	selected Selected
	mode     Mode
	readMode database.ReadMode

	lineLength int
	pageHeight int
	entryText  string
	entryLines int
	scroll     int

	input      []rune
	flash      string
	errorFlash []error
}

func NewSession(feedRepo database.FeedRepository, entryRepo database.EntryRepository,
	commands CommandSink, renderer Renderer, lineLength int) (*Session, error) {
	s := &Session{
		feedRepo:   feedRepo,
		entryRepo:  entryRepo,
		commands:   commands,
		renderer:   renderer,
		feeds:      NewList[database.Feed](nil),
		entries:    NewList[database.Entry](nil),
		selected:   SelectedFeeds,
		mode:       ModeNormal,
		readMode:   database.ShowUnread,
		lineLength: lineLength,
	}

	if err := s.reloadFeeds(); err != nil {
		return nil, err
	}
	if err := s.updateCurrentFeedAndEntries(); err != nil {
		return nil, err
	}

	return s, nil
}

// Snapshot accessors for the render collaborator.

func (s *Session) Feeds() []database.Feed       { return s.feeds.Items() }
func (s *Session) FeedIndex() int               { return s.feeds.Index() }
func (s *Session) Entries() []database.Entry    { return s.entries.Items() }
func (s *Session) EntryIndex() int              { return s.entries.Index() }
func (s *Session) CurrentFeed() *database.Feed  { return s.currentFeed }
func (s *Session) CurrentEntry() *database.Entry { return s.currentEntry }
func (s *Session) OpenEntry() *database.Entry   { return s.openEntry }
func (s *Session) Selected() Selected           { return s.selected }
func (s *Session) Mode() Mode                   { return s.mode }
func (s *Session) ReadMode() database.ReadMode  { return s.readMode }
func (s *Session) EntryText() string            { return s.entryText }
func (s *Session) Scroll() int                  { return s.scroll }
func (s *Session) Input() string                { return string(s.input) }
func (s *Session) Flash() string                { return s.flash }
func (s *Session) Errors() []error              { return s.errorFlash }

// SetPageHeight records the visible page height the renderer reports each
// draw; page scrolling uses it.
func (s *Session) SetPageHeight(h int) {
	if h > 0 {
		s.pageHeight = h
	}
}

func (s *Session) OnUp() error {
	switch s.selected {
	case SelectedFeeds:
		s.feeds.Prev()
		return s.updateCurrentFeedAndEntries()
	case SelectedEntries:
		if s.entries.Len() > 0 {
			s.entries.Prev()
			s.entryPos = s.entries.Index()
			s.syncCurrentEntry()
		}
	case SelectedEntry:
		s.scrollBy(-1)
	}
	return nil
}

func (s *Session) OnDown() error {
	switch s.selected {
	case SelectedFeeds:
		s.feeds.Next()
		return s.updateCurrentFeedAndEntries()
	case SelectedEntries:
		if s.entries.Len() > 0 {
			s.entries.Next()
			s.entryPos = s.entries.Index()
			s.syncCurrentEntry()
		}
	case SelectedEntry:
		s.scrollBy(1)
	}
	return nil
}

func (s *Session) OnPageUp() {
	if s.selected == SelectedEntry {
		s.scrollBy(-s.pageHeight)
	}
}

func (s *Session) OnPageDown() {
	if s.selected == SelectedEntry {
		s.scrollBy(s.pageHeight)
	}
}

func (s *Session) OnRight() error {
	switch s.selected {
	case SelectedFeeds:
		if s.entries.Len() > 0 {
			s.selected = SelectedEntries
			s.entries.Select(0)
			s.entryPos = 0
			s.syncCurrentEntry()
		}
		return nil
	case SelectedEntries:
		return s.OnEnter()
	default:
		return nil
	}
}

func (s *Session) OnLeft() error {
	switch s.selected {
	case SelectedFeeds:
	case SelectedEntries:
		s.selected = SelectedFeeds
	case SelectedEntry:
		s.closeEntry()
	}
	return nil
}

// OnEnter opens the highlighted entry, rendering its body through the
// injected renderer. Content wins over summary; the placeholder covers
// entries that provide neither.
func (s *Session) OnEnter() error {
	if s.selected == SelectedFeeds {
		return s.OnRight()
	}
	if s.selected != SelectedEntries || s.entries.Len() == 0 || s.currentEntry == nil {
		return nil
	}

	html := noContentPlaceholder
	switch {
	case s.currentEntry.Content != nil:
		html = *s.currentEntry.Content
	case s.currentEntry.Summary != nil:
		html = *s.currentEntry.Summary
	}

	s.entryText = s.render(html)
	s.entryLines = strings.Count(s.entryText, "\n") + 1
	s.scroll = 0

	open := *s.currentEntry
	s.openEntry = &open
	s.selected = SelectedEntry

	return nil
}

// ToggleRead flips the read state of the open entry (from the entry view) or
// the highlighted entry (from the entry list), then reloads the list so the
// toggled item immediately honors the active read-mode filter.
func (s *Session) ToggleRead() error {
	switch s.selected {
	case SelectedEntry:
		if s.openEntry == nil {
			return nil
		}
		if err := s.toggleEntryRead(*s.openEntry); err != nil {
			return err
		}
		if err := s.updateCurrentEntries(); err != nil {
			return err
		}
		s.closeEntry()
	case SelectedEntries:
		if s.currentEntry == nil {
			return nil
		}
		if err := s.toggleEntryRead(*s.currentEntry); err != nil {
			return err
		}
		if err := s.updateCurrentEntries(); err != nil {
			return err
		}
	case SelectedFeeds:
	}
	return nil
}

// ToggleReadMode switches between the unread and read listings. The entry
// list is always reloaded through the store rather than filtered in memory,
// so a refresh that completed in the background is picked up here too.
func (s *Session) ToggleReadMode() error {
	if s.selected == SelectedEntry {
		return nil
	}

	switch s.readMode {
	case database.ShowUnread:
		s.readMode = database.ShowRead
	case database.ShowRead:
		s.readMode = database.ShowUnread
	}

	s.entryPos = 0
	if err := s.updateCurrentEntries(); err != nil {
		return err
	}

	if s.entries.Len() > 0 {
		s.entries.Select(0)
	} else {
		s.entries.Unselect()
	}
	s.syncCurrentEntry()

	return nil
}

// DeleteFeed removes the highlighted feed and everything it owns.
func (s *Session) DeleteFeed() error {
	if s.selected != SelectedFeeds {
		return nil
	}
	feed, ok := s.feeds.Selected()
	if !ok {
		return nil
	}

	if err := s.feedRepo.DeleteFeed(feed.ID); err != nil {
		return err
	}
	if err := s.reloadFeeds(); err != nil {
		return err
	}
	return s.updateCurrentFeedAndEntries()
}

// RefreshCurrentFeed dispatches a refresh of the highlighted feed to the
// worker.
func (s *Session) RefreshCurrentFeed() {
	feed, ok := s.feeds.Selected()
	if !ok {
		return
	}
	if err := s.commands.Enqueue(sync.RefreshFeedCommand{FeedID: feed.ID}); err != nil {
		s.PushError(err)
	}
}

// RefreshAllFeeds dispatches a batch refresh of every subscribed feed.
func (s *Session) RefreshAllFeeds() {
	ids := lo.Map(s.feeds.Items(), func(f database.Feed, _ int) int64 { return f.ID })
	if len(ids) == 0 {
		return
	}
	if err := s.commands.Enqueue(sync.RefreshAllCommand{FeedIDs: ids}); err != nil {
		s.PushError(err)
	}
}

// FetchFullContent asks the worker to replace the highlighted entry's content
// with the readability-extracted article body.
func (s *Session) FetchFullContent() {
	entry := s.currentEntry
	if s.selected == SelectedEntry {
		entry = s.openEntry
	}
	if entry == nil {
		return
	}
	if err := s.commands.Enqueue(sync.ExtractContentCommand{EntryID: entry.ID}); err != nil {
		s.PushError(err)
	}
}

// Editing mode: the input buffer collects a feed URL to subscribe to.

func (s *Session) StartEditing() {
	s.mode = ModeEditing
}

func (s *Session) StopEditing() {
	s.mode = ModeNormal
}

func (s *Session) InputRune(r rune) {
	if s.mode == ModeEditing {
		s.input = append(s.input, r)
	}
}

func (s *Session) InputBackspace() {
	if s.mode == ModeEditing && len(s.input) > 0 {
		s.input = s.input[:len(s.input)-1]
	}
}

// SubmitSubscription dispatches the buffered URL to the worker. The buffer is
// cleared only when the subscription succeeds, so a failed URL can be
// corrected instead of retyped.
func (s *Session) SubmitSubscription() {
	url := strings.TrimSpace(string(s.input))
	if url == "" {
		return
	}
	if err := s.commands.Enqueue(sync.SubscribeCommand{URL: url}); err != nil {
		s.PushError(err)
	}
}

func (s *Session) PushError(err error) {
	s.errorFlash = append(s.errorFlash, err)
}

// DismissErrors clears the error queue; errors are never cleared
// automatically.
func (s *Session) DismissErrors() {
	s.errorFlash = nil
}

func (s *Session) HasErrors() bool {
	return len(s.errorFlash) > 0
}

// Apply folds a worker event into the session. Results for a feed the user
// has navigated away from change nothing visible; the data is durably stored
// and appears when that feed is highlighted again.
func (s *Session) Apply(ev sync.Event) error {
	switch ev := ev.(type) {
	case sync.FlashSet:
		s.flash = ev.Message
	case sync.FlashCleared:
		s.flash = ""
	case sync.FeedRefreshed:
		if s.currentFeed != nil && s.currentFeed.ID == ev.FeedID {
			return s.updateCurrentFeedAndEntries()
		}
	case sync.BatchRefreshed:
		for _, failure := range ev.Failures {
			s.PushError(failure.Err)
		}
		if err := s.reloadFeeds(); err != nil {
			return err
		}
		return s.updateCurrentFeedAndEntries()
	case sync.Subscribed:
		s.input = nil
		s.mode = ModeNormal
		s.selected = SelectedFeeds
		if err := s.reloadFeeds(); err != nil {
			return err
		}
		return s.updateCurrentFeedAndEntries()
	case sync.SubscribeFailed:
		// Buffer stays intact for correction.
		s.PushError(ev.Err)
	case sync.ContentExtracted:
		if err := s.updateCurrentEntries(); err != nil {
			return err
		}
		if s.openEntry != nil && s.openEntry.ID == ev.EntryID {
			return s.reopenEntry(ev.EntryID)
		}
	case sync.CommandFailed:
		s.PushError(ev.Err)
	}
	return nil
}

func (s *Session) reloadFeeds() error {
	feeds, err := s.feedRepo.ListFeeds()
	if err != nil {
		return err
	}

	index := s.feeds.Index()
	s.feeds = NewList(feeds)
	if len(feeds) > 0 {
		s.feeds.Select(lo.Clamp(index, 0, len(feeds)-1))
	}

	return nil
}

func (s *Session) updateCurrentFeedAndEntries() error {
	if err := s.updateCurrentFeed(); err != nil {
		return err
	}
	return s.updateCurrentEntries()
}

func (s *Session) updateCurrentFeed() error {
	if s.feeds.Len() == 0 {
		s.currentFeed = nil
		return nil
	}

	if s.feeds.Index() < 0 {
		s.feeds.Select(0)
	}

	selected, _ := s.feeds.Selected()
	feed, err := s.feedRepo.GetFeed(selected.ID)
	if err != nil {
		return err
	}
	s.currentFeed = &feed

	return nil
}

// updateCurrentEntries reloads the entry list from the store and re-resolves
// the highlight, clamping to the new length. The list is never patched in
// place.
func (s *Session) updateCurrentEntries() error {
	if s.currentFeed == nil {
		s.entries = NewList[database.Entry](nil)
		s.currentEntry = nil
		return nil
	}

	entries, err := s.entryRepo.ListEntries(s.currentFeed.ID, s.readMode)
	if err != nil {
		return err
	}

	s.entries = NewList(entries)
	if len(entries) > 0 {
		s.entries.Select(lo.Clamp(s.entryPos, 0, len(entries)-1))
		s.entryPos = s.entries.Index()
	} else {
		s.entryPos = 0
	}
	s.syncCurrentEntry()

	return nil
}

func (s *Session) syncCurrentEntry() {
	if entry, ok := s.entries.Selected(); ok {
		s.currentEntry = &entry
	} else {
		s.currentEntry = nil
	}
}

func (s *Session) toggleEntryRead(entry database.Entry) error {
	var readAt *time.Time
	if entry.ReadAt == nil {
		now := time.Now().UTC()
		readAt = &now
	}
	return s.entryRepo.SetReadAt(entry.ID, readAt)
}

func (s *Session) closeEntry() {
	s.scroll = 0
	s.entryText = ""
	s.entryLines = 0
	s.openEntry = nil
	s.selected = SelectedEntries
}

// reopenEntry re-renders the open entry after its stored content changed.
func (s *Session) reopenEntry(entryID int64) error {
	entry, err := s.entryRepo.GetEntry(entryID)
	if err != nil {
		return err
	}

	html := noContentPlaceholder
	switch {
	case entry.Content != nil:
		html = *entry.Content
	case entry.Summary != nil:
		html = *entry.Summary
	}

	s.entryText = s.render(html)
	s.entryLines = strings.Count(s.entryText, "\n") + 1
	s.scroll = lo.Clamp(s.scroll, 0, s.maxScroll())
	s.openEntry = &entry

	return nil
}

func (s *Session) render(html string) string {
	if s.renderer == nil {
		return html
	}
	return s.renderer.Render(html, s.lineLength)
}

// scrollBy saturates at the top and at the end of the rendered body, so
// repeated scrolling never underflows or runs past EOF.
func (s *Session) scrollBy(delta int) {
	if delta == 0 {
		return
	}
	s.scroll = lo.Clamp(s.scroll+delta, 0, s.maxScroll())
}

func (s *Session) maxScroll() int {
	if s.entryLines < 1 {
		return 0
	}
	return s.entryLines - 1
}
