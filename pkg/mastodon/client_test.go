package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baraagdl/pkg/errors"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/ratelimit"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 5*time.Second, ratelimit.NewTokenBucket(1000, time.Minute), 1, logger.NewNopLogger())
	return client, server
}

func TestVerifyCredentials(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Account{ID: "42", Acct: "me@baraag.net"})
	}))
	client.SetAccessToken("token123")

	account, err := client.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "me@baraag.net", account.Acct)
}

func TestAccountStatusesQuery(t *testing.T) {
	var gotQuery map[string][]string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]Status{{ID: "1"}})
	}))

	page, err := client.AccountStatuses(context.Background(), "42", "999")
	require.NoError(t, err)
	require.Len(t, page, 1)

	assert.Equal(t, []string{"true"}, gotQuery["only_media"])
	assert.Equal(t, []string{"true"}, gotQuery["exclude_replies"])
	assert.Equal(t, []string{"40"}, gotQuery["limit"])
	assert.Equal(t, []string{"999"}, gotQuery["max_id"])
}

func TestAccountStatusesNoCursorOnFirstPage(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("max_id"))
		json.NewEncoder(w).Encode([]Status{})
	}))

	page, err := client.AccountStatuses(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStatusCodeTaxonomy(t *testing.T) {
	tests := []struct {
		code     int
		wantType errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errors.ErrorTypeServerError},
		{http.StatusBadGateway, errors.ErrorTypeServerError},
		{http.StatusTeapot, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))

			_, err := client.VerifyCredentials(context.Background())
			require.Error(t, err)

			var apiErr *errors.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.VerifyCredentials(context.Background())
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, errors.IsRetryable(apiErr.Type))
}

func TestParseError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))

	_, err := client.VerifyCredentials(context.Background())
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeParsing, apiErr.Type)
}

func TestSearchAccounts(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/search", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode([]Account{
			{ID: "1", Acct: "alice@baraag.net"},
			{ID: "2", Acct: "alicia@baraag.net"},
		})
	}))

	accounts, err := client.SearchAccounts(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice@baraag.net", accounts[0].Acct)
}

func TestRegisterAppAndObtainToken(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch r.URL.Path {
		case "/api/v1/apps":
			assert.Equal(t, "read", r.PostForm.Get("scopes"))
			assert.Equal(t, RedirectURI, r.PostForm.Get("redirect_uris"))
			json.NewEncoder(w).Encode(Application{ClientID: "cid", ClientSecret: "csecret"})
		case "/oauth/token":
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			assert.Equal(t, "cid", r.PostForm.Get("client_id"))
			assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
			json.NewEncoder(w).Encode(Token{AccessToken: "tok"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	app, err := client.RegisterApp(context.Background(), "baraagdl")
	require.NoError(t, err)
	assert.Equal(t, "cid", app.ClientID)

	token, err := client.ObtainToken(context.Background(), app, "user@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
}

func TestDownload(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "media bytes")
	}))

	body, err := client.Download(context.Background(), client.BaseURL()+"/media/a.png")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "media bytes", string(data))
}

func TestDownloadErrorStatus(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Download(context.Background(), client.BaseURL()+"/media/gone.png")
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeNotFound, apiErr.Type)
}

func TestDownloadCancelledContextKeepsSentinel(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "never reached")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Download(ctx, client.BaseURL()+"/media/a.png")
	require.Error(t, err)

	// The interrupt path depends on the sentinel surviving the typed wrap
	assert.ErrorIs(t, err, context.Canceled)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeNetwork, apiErr.Type)
}

func TestProbeHeaders(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="a.webm"`)
		io.WriteString(w, "ignored body")
	}))

	headers, err := client.ProbeHeaders(context.Background(), client.BaseURL()+"/redirect")
	require.NoError(t, err)
	assert.Contains(t, headers.Get("Content-Disposition"), "a.webm")
}
