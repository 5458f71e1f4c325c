package parser

import "context"

// URL is one entry read from a source (channel feed or URL list).
type URL struct {
	Location string
	Title    string
}

// Parser reads video URLs from a source. The meaning of source depends on the parser.
type Parser interface {
	ParseFromURL(ctx context.Context, source string) ([]URL, error)
}
