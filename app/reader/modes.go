package reader

// Selected is the navigation level that currently has input focus.
type Selected int

const (
	SelectedFeeds Selected = iota
	SelectedEntries
	SelectedEntry
)

func (s Selected) String() string {
	switch s {
	case SelectedFeeds:
		return "feeds"
	case SelectedEntries:
		return "entries"
	case SelectedEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// Mode is orthogonal to Selected: Editing captures keystrokes into the
// feed-subscription URL buffer.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEditing
)
