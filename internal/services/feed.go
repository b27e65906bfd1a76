// Channel feed backed [Catalog] implementation.
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Jikexiaobai/Y2B/internal/models"
	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"
)

// FeedCatalog lists candidate videos by parsing a channel's Atom feed.
type FeedCatalog struct {
	baseURL string
	parser  *gofeed.Parser
}

// NewFeedCatalog creates a catalog for the configured feed endpoint.
func NewFeedCatalog(cfg *shared.Config, client *http.Client) *FeedCatalog {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	return &FeedCatalog{
		baseURL: cfg.Catalog.FeedBaseURL,
		parser:  parser,
	}
}

// ListItems performs one network fetch for channelID and returns the
// channel's videos in feed order (newest first). Network or parse failures
// are fatal for the source and wrap [shared.ErrCatalogFetch].
func (f *FeedCatalog) ListItems(ctx context.Context, channelID string) ([]models.SourceItem, error) {
	feedURL := fmt.Sprintf("%s?channel_id=%s", f.baseURL, channelID)

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: channel %s: %v", shared.ErrCatalogFetch, channelID, err)
	}

	items := make([]models.SourceItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		vid := extensionValue(entry.Extensions, "yt", "videoId")
		if vid == "" {
			continue
		}
		items = append(items, models.SourceItem{
			VideoID:   vid,
			Title:     entry.Title,
			Origin:    "https://www.youtube.com/watch?v=" + vid,
			CoverURL:  thumbnailURL(entry.Extensions),
			ChannelID: channelID,
		})
	}

	return items, nil
}

// extensionValue reads a simple namespaced element like <yt:videoId>.
func extensionValue(exts ext.Extensions, namespace, name string) string {
	values, ok := exts[namespace][name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// thumbnailURL digs the cover image out of <media:group><media:thumbnail url=...>.
func thumbnailURL(exts ext.Extensions) string {
	groups, ok := exts["media"]["group"]
	if !ok || len(groups) == 0 {
		return ""
	}
	thumbs := groups[0].Children["thumbnail"]
	if len(thumbs) == 0 {
		return ""
	}
	return thumbs[0].Attrs["url"]
}
