package sync

// Commands flow from the render loop to the worker over a single ordered
// channel. The render loop never performs network I/O itself; anything that
// fetches is dispatched as a command.

type Command interface {
	isCommand()
}

type RefreshFeedCommand struct {
	FeedID int64
}

type RefreshAllCommand struct {
	FeedIDs []int64
}

type SubscribeCommand struct {
	URL string
}

type ExtractContentCommand struct {
	EntryID int64
}

type ClearFlashCommand struct{}

func (RefreshFeedCommand) isCommand()    {}
func (RefreshAllCommand) isCommand()     {}
func (SubscribeCommand) isCommand()      {}
func (ExtractContentCommand) isCommand() {}
func (ClearFlashCommand) isCommand()     {}
