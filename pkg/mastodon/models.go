package mastodon

// Account represents a Mastodon account as returned by the API
type Account struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

// MediaAttachment represents a single media resource attached to a status
type MediaAttachment struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	RemoteURL string `json:"remote_url"`
}

// Status represents a single post. CreatedAt is kept as the raw timestamp
// string; date derivation happens at resolution time.
type Status struct {
	ID               string            `json:"id"`
	CreatedAt        string            `json:"created_at"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
}

// Page is one bounded batch of statuses from the paginated feed query
type Page []Status

// Application holds the client credentials returned by app registration
type Application struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Token holds an OAuth token obtained via the password grant
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	CreatedAt   int64  `json:"created_at"`
}
