package feed

import (
	"github.com/brookreader/brook/app/database"
)

// Source is a parsed remote document: the feed's own metadata plus its
// entries. Entry IDs and feed IDs are unset; the store assigns them on
// persistence.
type Source struct {
	Feed    database.Feed
	Entries []database.Entry
}
