package mastodon

import (
	"context"
	"encoding/json"
	"io"

	"github.com/peterhellberg/link"

	"baraagdl/pkg/errors"
)

// FetchAllFollowing walks the link-header-paginated following endpoint and
// returns every account the given user follows, in API order. An empty
// result is an error: the tool cannot proceed without a follow list.
func (c *Client) FetchAllFollowing(ctx context.Context, accountID string) ([]Account, error) {
	next := FollowingURL(c.baseURL, accountID)
	var all []Account

	for next != "" {
		resp, err := c.Get(ctx, next)
		if err != nil {
			return nil, err
		}

		if err := c.checkResponseStatus(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}

		var page []Account
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &errors.Error{
				Type:    errors.ErrorTypeNetwork,
				Message: "failed to read following page: " + err.Error(),
				Code:    resp.StatusCode,
			}
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &errors.Error{
				Type:    errors.ErrorTypeParsing,
				Message: "failed to parse following page: " + err.Error(),
				Code:    resp.StatusCode,
			}
		}
		all = append(all, page...)

		next = ""
		if l, ok := link.ParseResponse(resp)["next"]; ok {
			next = l.URI
		}
	}

	if len(all) == 0 {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNotFound,
			Message: "following list is empty",
			Code:    0,
		}
	}

	c.logger.InfoWithFields("follow list fetched", map[string]interface{}{
		"account_id": accountID,
		"count":      len(all),
	})

	return all, nil
}

// ParseFollowing collapses a follow list into a mapping keyed by account
// handle. Handles are assumed unique; a duplicate overwrites the earlier
// entry. Lookup is the only use, so insertion order is not preserved.
func ParseFollowing(accounts []Account) map[string]Account {
	following := make(map[string]Account, len(accounts))
	for _, account := range accounts {
		following[account.Acct] = account
	}
	return following
}
