package archiver

import (
	"context"

	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
)

// PageFetcher fetches one page of an account's media statuses
type PageFetcher interface {
	AccountStatuses(ctx context.Context, accountID, maxID string) (mastodon.Page, error)
}

// FetchTimeline walks an account's media timeline newest-first and returns
// every non-empty page in fetch order.
//
// The cursor for each fetch is the ID of the last (oldest) post of the
// previous page. Only a page of size zero terminates the walk: a short
// page does not, so one extra request always follows it to confirm
// exhaustion. Any fetch error aborts the walk. An account with no
// qualifying posts yields an empty timeline, which is success.
func FetchTimeline(ctx context.Context, fetcher PageFetcher, accountID string, log logger.Logger) ([]mastodon.Page, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	var timeline []mastodon.Page
	maxID := ""

	for {
		page, err := fetcher.AccountStatuses(ctx, accountID, maxID)
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			break
		}

		timeline = append(timeline, page)
		maxID = page[len(page)-1].ID

		log.InfoWithFields("fetched timeline page", map[string]interface{}{
			"account_id": accountID,
			"page":       len(timeline),
			"posts":      len(page),
			"last_post":  maxID,
		})
	}

	return timeline, nil
}
