package verify_test

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukudarovv/instachecker-sub000/internal/verify"
)

func htmlResponse(status int, body, finalURL string) *http.Response {
	u, _ := url.Parse(finalURL)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    &http.Request{URL: u},
	}
}

func TestClassifyBlockingStatuses(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		class, _, err := verify.ClassifyResponse(htmlResponse(status, "", "https://example.com/someuser/"))
		require.NoError(t, err)
		assert.Equal(t, verify.PageBlocked, class)
	}
}

func TestClassifyNotFoundStatus(t *testing.T) {
	class, _, err := verify.ClassifyResponse(htmlResponse(http.StatusNotFound, "", "https://example.com/someuser/"))
	require.NoError(t, err)
	assert.Equal(t, verify.PageNotFound, class)
}

func TestClassifyLoginRedirect(t *testing.T) {
	// A followed redirect leaves the login URL as the final request URL
	class, _, err := verify.ClassifyResponse(htmlResponse(
		http.StatusOK,
		"<html><body>anything</body></html>",
		"https://example.com/accounts/login/?next=%2Fsomeuser%2F",
	))
	require.NoError(t, err)
	assert.Equal(t, verify.PageLogin, class)
}

func TestClassifyNotFoundMarkers(t *testing.T) {
	pages := []string{
		`<html><head><title>Page Not Found</title></head><body></body></html>`,
		`<html><head><title>Profiles</title></head><body>Sorry, this page isn't available.</body></html>`,
	}
	for _, page := range pages {
		class, _, err := verify.ClassifyResponse(htmlResponse(http.StatusOK, page, "https://example.com/someuser/"))
		require.NoError(t, err)
		assert.Equal(t, verify.PageNotFound, class)
	}
}

func TestClassifyLoginForm(t *testing.T) {
	page := `<html><head><title>Welcome</title></head><body>
		<form><input name="username"/><input name="password" type="password"/></form>
	</body></html>`
	class, _, err := verify.ClassifyResponse(htmlResponse(http.StatusOK, page, "https://example.com/someuser/"))
	require.NoError(t, err)
	assert.Equal(t, verify.PageLogin, class)
}

func TestClassifyRateLimitMarker(t *testing.T) {
	page := `<html><head><title>Error</title></head><body>Please wait a few minutes before you try again.</body></html>`
	class, _, err := verify.ClassifyResponse(htmlResponse(http.StatusOK, page, "https://example.com/someuser/"))
	require.NoError(t, err)
	assert.Equal(t, verify.PageBlocked, class)
}

func TestClassifyProfileMarkers(t *testing.T) {
	page := `<html><head>
		<title>someuser</title>
		<meta property="og:type" content="profile"/>
	</head><body><header><img src="avatar.jpg"/></header></body></html>`
	class, body, err := verify.ClassifyResponse(htmlResponse(http.StatusOK, page, "https://example.com/someuser/"))
	require.NoError(t, err)
	assert.Equal(t, verify.PageProfile, class)
	assert.NotEmpty(t, body, "profile body is returned for snapshotting")
}

func TestClassifyAmbiguousMarkup(t *testing.T) {
	page := `<html><head><title>Loading</title></head><body><div id="app"></div></body></html>`
	class, _, err := verify.ClassifyResponse(htmlResponse(http.StatusOK, page, "https://example.com/someuser/"))
	require.NoError(t, err)
	assert.Equal(t, verify.PageUnknown, class)
}
