package gamma

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// QueryEvents fetches events matching the given selection.
func (c *Client) QueryEvents(ctx context.Context, q EventQuery) ([]APIEvent, error) {
	query := url.Values{}

	if q.TagSlug != "" {
		query.Set("tag_slug", q.TagSlug)
	}
	if q.SlugPrefix != "" {
		query.Set("slug_prefix", q.SlugPrefix)
	}
	if q.Slug != "" {
		query.Set("slug", q.Slug)
	}
	if q.Closed != nil {
		query.Set("closed", strconv.FormatBool(*q.Closed))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var events []APIEvent
	if err := c.getJSON(ctx, "/events", query, &events); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return events, nil
}
