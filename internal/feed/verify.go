package feed

import (
	"fmt"
	"os"

	"github.com/mmcdole/gofeed"
)

// Verify parses a written feed file and checks it holds want items
func Verify(path string, want int) (*gofeed.Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s does not parse as a feed: %w", path, err)
	}
	if len(parsed.Items) != want {
		return parsed, fmt.Errorf("%s has %d items, want %d", path, len(parsed.Items), want)
	}
	return parsed, nil
}
