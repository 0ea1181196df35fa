// Package volcano reads volcanic ash-fall bulletins from the Japan
// Meteorological Agency's XML Atom feeds.
package volcano

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sorairo/tenki/internal/htmlutil"
	"github.com/sorairo/tenki/internal/httputil"
)

const (
	// ExtraFeedURL is the high-frequency "extra" feed, which carries volcano bulletins.
	ExtraFeedURL = "https://www.data.jma.go.jp/developer/xml/feed/extra.xml"

	// ashFallMarker appears in the title of every ash-fall forecast (降灰予報).
	ashFallMarker = "降灰予報"

	summaryLength = 200
)

// Bulletin is one ash-fall forecast for a single volcano.
type Bulletin struct {
	ID      string
	Title   string
	Volcano string
	Office  string
	Issued  time.Time
	Summary string
	URL     string
}

// Client fetches ash-fall bulletins from a JMA Atom feed.
type Client struct {
	httpClient *http.Client
	feedURL    string
}

func NewClient(feedURL string) *Client {
	return &Client{
		httpClient: httputil.NewClient(),
		feedURL:    feedURL,
	}
}

// NewExtraClient creates a client for the JMA extra feed.
func NewExtraClient() *Client {
	return NewClient(ExtraFeedURL)
}

// Fetch retrieves the feed and returns ash-fall bulletins that mention
// the given volcano, newest first. An empty volcano returns every ash-fall entry.
func (c *Client) Fetch(ctx context.Context, volcano string) ([]Bulletin, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.feedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", httputil.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read feed: %w", err)
	}

	bulletins, err := Parse(body, volcano)
	if err != nil {
		return nil, body, err
	}
	return bulletins, body, nil
}

// Atom XML structures
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string     `xml:"id"`
	Title   string     `xml:"title"`
	Updated string     `xml:"updated"`
	Author  atomAuthor `xml:"author"`
	Links   []atomLink `xml:"link"`
	Content string     `xml:"content"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Parse decodes an Atom feed and keeps ash-fall entries for the volcano.
func Parse(data []byte, volcano string) ([]Bulletin, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("decode atom: %w", err)
	}

	var bulletins []Bulletin
	for _, e := range feed.Entries {
		if !strings.Contains(e.Title, ashFallMarker) {
			continue
		}
		text := htmlutil.Summary(e.Content, 0)
		if volcano != "" && !strings.Contains(e.Title, volcano) && !strings.Contains(text, volcano) {
			continue
		}

		b := Bulletin{
			ID:      strings.TrimSpace(e.ID),
			Title:   strings.TrimSpace(e.Title),
			Volcano: volcano,
			Office:  strings.TrimSpace(e.Author.Name),
			Summary: htmlutil.Summary(e.Content, summaryLength),
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated)); err == nil {
			b.Issued = t
		}
		for _, l := range e.Links {
			if l.Href != "" {
				b.URL = l.Href
				break
			}
		}
		if b.ID == "" {
			b.ID = b.URL
		}
		bulletins = append(bulletins, b)
	}

	sort.SliceStable(bulletins, func(i, j int) bool {
		return bulletins[i].Issued.After(bulletins[j].Issued)
	})
	return bulletins, nil
}
