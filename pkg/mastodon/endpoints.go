package mastodon

import (
	"fmt"
	"net/url"
)

const (
	// PageLimit is the API-imposed maximum page size for status queries
	PageLimit = 40

	// DefaultBaseURL is the instance this tool was written for
	DefaultBaseURL = "https://baraag.net"

	// OAuthScopes requested at app registration and login
	OAuthScopes = "read"

	// RedirectURI for out-of-band authorization
	RedirectURI = "urn:ietf:wg:oauth:2.0:oob"
)

// VerifyCredentialsURL constructs the "who am I" endpoint URL
func VerifyCredentialsURL(base string) string {
	return base + "/api/v1/accounts/verify_credentials"
}

// StatusesURL constructs the URL for one page of an account's media-bearing,
// non-reply statuses, optionally bounded by maxID (exclusive upper cursor)
func StatusesURL(base, accountID, maxID string) string {
	params := url.Values{}
	params.Set("only_media", "true")
	params.Set("exclude_replies", "true")
	params.Set("limit", fmt.Sprintf("%d", PageLimit))
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	return fmt.Sprintf("%s/api/v1/accounts/%s/statuses?%s", base, accountID, params.Encode())
}

// FollowingURL constructs the URL for the first page of an account's
// follow list; subsequent pages come from Link-header next relations
func FollowingURL(base, accountID string) string {
	return fmt.Sprintf("%s/api/v1/accounts/%s/following", base, accountID)
}

// SearchAccountsURL constructs the account search endpoint URL
func SearchAccountsURL(base, query string) string {
	params := url.Values{}
	params.Set("q", query)

	return fmt.Sprintf("%s/api/v1/accounts/search?%s", base, params.Encode())
}

// AppsURL constructs the app registration endpoint URL
func AppsURL(base string) string {
	return base + "/api/v1/apps"
}

// TokenURL constructs the OAuth token endpoint URL
func TokenURL(base string) string {
	return base + "/oauth/token"
}
