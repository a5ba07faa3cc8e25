package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/feeds"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/pkg/logger"
)

// Writer serializes documents to disk
type Writer struct {
	config config.PublishingConfig
	log    *logger.Logger
}

// NewWriter creates a new feed writer
func NewWriter(cfg config.PublishingConfig, log *logger.Logger) *Writer {
	return &Writer{
		config: cfg,
		log:    log.WithComponent("feed"),
	}
}

// WriteResult lists the files produced by one write
type WriteResult struct {
	RSSPath        string
	AtomPath       string
	JSONPath       string
	StylesheetPath string
}

// Paths returns every written path
func (r *WriteResult) Paths() []string {
	var paths []string
	for _, p := range []string{r.RSSPath, r.AtomPath, r.JSONPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// OutputFiles returns the paths a write with cfg produces. StylesheetPath is
// where the stylesheet is copied to, whether or not the source exists.
func OutputFiles(cfg config.PublishingConfig) *WriteResult {
	out := cfg.OutputPath
	base := strings.TrimSuffix(out, filepath.Ext(out))

	files := &WriteResult{RSSPath: out}
	if cfg.WriteAtom {
		files.AtomPath = base + ".atom"
	}
	if cfg.WriteJSON {
		files.JSONPath = base + ".json"
	}
	if cfg.Stylesheet != "" {
		files.StylesheetPath = filepath.Join(filepath.Dir(out), filepath.Base(cfg.Stylesheet))
	}
	return files
}

// Write writes the RSS document and, when configured, the Atom and JSON
// siblings and the stylesheet
func (w *Writer) Write(doc *Document) (*WriteResult, error) {
	out := w.config.OutputPath
	if err := config.EnsureDir(out); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	planned := OutputFiles(w.config)

	href := ""
	if planned.StylesheetPath != "" {
		href = filepath.Base(planned.StylesheetPath)
	}

	rss, err := RSS(doc, href)
	if err != nil {
		return nil, err
	}
	result := &WriteResult{RSSPath: out}
	if err := writeFileAtomic(out, rss); err != nil {
		return nil, err
	}

	if planned.AtomPath != "" {
		atom, err := Atom(doc)
		if err != nil {
			return nil, err
		}
		result.AtomPath = planned.AtomPath
		if err := writeFileAtomic(result.AtomPath, atom); err != nil {
			return nil, err
		}
	}
	if planned.JSONPath != "" {
		js, err := JSON(doc)
		if err != nil {
			return nil, err
		}
		result.JSONPath = planned.JSONPath
		if err := writeFileAtomic(result.JSONPath, js); err != nil {
			return nil, err
		}
	}

	if planned.StylesheetPath != "" {
		dst := planned.StylesheetPath
		switch err := copyFile(w.config.Stylesheet, dst); {
		case err == nil:
			result.StylesheetPath = dst
		case errors.Is(err, os.ErrNotExist):
			w.log.Warn().Str("stylesheet", w.config.Stylesheet).Msg("Stylesheet not found, not copied")
		default:
			return nil, fmt.Errorf("failed to copy stylesheet: %w", err)
		}
	}

	w.log.Info().
		Strs("paths", result.Paths()).
		Int("entries", len(doc.Entries)).
		Msg("Feed written")

	return result, nil
}

func toFeed(doc *Document) *feeds.Feed {
	f := &feeds.Feed{
		Title:       doc.Title,
		Link:        &feeds.Link{Href: doc.Link},
		Description: doc.Description,
		Created:     doc.BuildTime,
		Updated:     doc.LastContent,
		Items:       make([]*feeds.Item, 0, len(doc.Entries)),
	}
	for _, e := range doc.Entries {
		item := &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Description: e.Description,
			Id:          e.GUID,
			IsPermaLink: "false",
			Created:     e.Published,
		}
		if e.Author != "" {
			item.Author = &feeds.Author{Name: e.Author}
		}
		if e.Source != nil {
			item.Source = &feeds.Link{Href: e.Source.URL}
		}
		f.Add(item)
	}
	return f
}

// rssSource is the RSS 2.0 <source url="...">name</source> element
type rssSource struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

// rssItem replaces the library's href-only source element
type rssItem struct {
	*feeds.RssItem
	Source *rssSource `xml:"source,omitempty"`
}

type rssChannel struct {
	*feeds.RssFeed
	Items []*rssItem `xml:"item"`
}

type rssDocument struct {
	XMLName          xml.Name    `xml:"rss"`
	Version          string      `xml:"version,attr"`
	ContentNamespace string      `xml:"xmlns:content,attr"`
	Channel          *rssChannel `xml:"channel"`
}

// FeedXml satisfies feeds.XmlFeed
func (d *rssDocument) FeedXml() interface{} {
	return d
}

// RSS renders doc as RSS 2.0. A non-empty stylesheet adds an
// xml-stylesheet processing instruction pointing at it.
func RSS(doc *Document, stylesheet string) (string, error) {
	channel := (&feeds.Rss{Feed: toFeed(doc)}).RssFeed()
	channel.Ttl = doc.TTL

	items := make([]*rssItem, len(channel.Items))
	for i, item := range channel.Items {
		entry := doc.Entries[i]
		item.Category = entry.Category
		items[i] = &rssItem{RssItem: item}
		if entry.Source != nil {
			items[i].Source = &rssSource{URL: entry.Source.URL, Name: entry.Source.Name}
		}
	}

	out, err := feeds.ToXML(&rssDocument{
		Version:          "2.0",
		ContentNamespace: "http://purl.org/rss/1.0/modules/content/",
		Channel:          &rssChannel{RssFeed: channel, Items: items},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render rss: %w", err)
	}

	if stylesheet != "" {
		header := strings.TrimSuffix(xml.Header, "\n")
		pi := fmt.Sprintf("\n<?xml-stylesheet href=%q type=\"text/xsl\"?>\n", stylesheet)
		out = strings.Replace(out, header, header+pi, 1)
	}
	return out, nil
}

// Atom renders doc as Atom 1.0
func Atom(doc *Document) (string, error) {
	out, err := toFeed(doc).ToAtom()
	if err != nil {
		return "", fmt.Errorf("failed to render atom: %w", err)
	}
	return out, nil
}

// JSON renders doc as JSON Feed 1.0
func JSON(doc *Document) (string, error) {
	out, err := toFeed(doc).ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to render json feed: %w", err)
	}
	return out, nil
}

func writeFileAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(src, dst string) error {
	srcAbs, _ := filepath.Abs(src)
	dstAbs, _ := filepath.Abs(dst)
	if srcAbs == dstAbs {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
