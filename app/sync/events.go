package sync

import "time"

// Events flow back from the worker to the render loop, which applies them to
// the session state. The worker never mutates session state directly.

type Event interface {
	isEvent()
}

// FlashSet carries a user-visible status message. Transient flashes are
// cleared automatically after the configured display duration; the rest stay
// until explicitly dismissed.
type FlashSet struct {
	Message   string
	Transient bool
}

type FlashCleared struct{}

type FeedRefreshed struct {
	FeedID     int64
	NewEntries int
	Duration   time.Duration
}

type FeedFailure struct {
	FeedID int64
	Err    error
}

// BatchRefreshed reports a whole batch: every feed is accounted for either in
// Succeeded or in Failures.
type BatchRefreshed struct {
	Attempted int
	Succeeded int
	Failures  []FeedFailure
	Duration  time.Duration
}

type Subscribed struct {
	FeedID   int64
	Duration time.Duration
}

type SubscribeFailed struct {
	URL string
	Err error
}

type ContentExtracted struct {
	EntryID int64
}

// CommandFailed reports a failed single-feed refresh or content extraction.
type CommandFailed struct {
	Err error
}

func (FlashSet) isEvent()         {}
func (FlashCleared) isEvent()     {}
func (FeedRefreshed) isEvent()    {}
func (BatchRefreshed) isEvent()   {}
func (Subscribed) isEvent()       {}
func (SubscribeFailed) isEvent()  {}
func (ContentExtracted) isEvent() {}
func (CommandFailed) isEvent()    {}
