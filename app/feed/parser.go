package feed

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/brookreader/brook/app/database"
)

// ErrUnrecognizedFormat is returned when a document parses as neither Atom
// nor RSS.
var ErrUnrecognizedFormat = errors.New("document is neither Atom nor RSS")

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw response bytes into a Source. sourceURL is the URL the
// document was fetched from; it always wins over whatever link the document
// claims for itself, since that value is frequently absent or wrong.
func (p *Parser) Run(data []byte, sourceURL string) (*Source, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	var kind database.FeedKind
	switch parsed.FeedType {
	case "atom":
		kind = database.FeedKindAtom
	case "rss":
		kind = database.FeedKindRSS
	default:
		return nil, fmt.Errorf("%w: unsupported feed type %q", ErrUnrecognizedFormat, parsed.FeedType)
	}

	source := &Source{
		Feed: database.Feed{
			Title:     optional(parsed.Title),
			SiteLink:  optional(parsed.Link),
			SourceURL: sourceURL,
			Kind:      kind,
		},
	}

	source.Entries = make([]database.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		source.Entries = append(source.Entries, normalizeItem(item))
	}

	return source, nil
}

func normalizeItem(item *gofeed.Item) database.Entry {
	return database.Entry{
		Title:       optional(item.Title),
		Author:      extractAuthor(item),
		PublishedAt: extractPublishedAt(item),
		Summary:     optional(item.Description),
		Content:     optional(item.Content),
		Link:        optional(item.Link),
	}
}

func extractAuthor(item *gofeed.Item) *string {
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return optional(author.Name)
		}
	}
	if item.Author != nil {
		return optional(item.Author.Name)
	}
	return nil
}

// extractPublishedAt tolerates the wide variance of real-world date strings.
// When gofeed could not parse the date itself, a dateparse pass over the raw
// value gets a second chance; an unparseable date yields nil rather than
// failing the feed.
func extractPublishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.Published != "" {
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// optional maps gofeed's zero value onto "not provided". The placeholder for
// entries with neither content nor summary is applied at render time, not
// here.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
