package verify

import (
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageClass is what a rendered profile page turned out to be
type PageClass int

const (
	PageUnknown PageClass = iota
	PageProfile
	PageNotFound
	PageLogin
	PageBlocked
)

func (c PageClass) String() string {
	switch c {
	case PageProfile:
		return "profile"
	case PageNotFound:
		return "not_found"
	case PageLogin:
		return "login"
	case PageBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Cap on how much of a response body we parse and snapshot
const maxRenderBody = 2 << 20

// ClassifyResponse maps a rendered profile response to a PageClass and
// returns the body it consumed so the caller can snapshot it. Blocking
// signals are decided on status alone; everything else needs the markup.
func ClassifyResponse(resp *http.Response) (PageClass, []byte, error) {
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return PageBlocked, nil, nil
	case http.StatusNotFound:
		return PageNotFound, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderBody))
	if err != nil {
		return PageUnknown, nil, err
	}

	// Redirects into the login or challenge surface are followed by the
	// client, so they show up as the final URL rather than a 3xx.
	if resp.Request != nil && resp.Request.URL != nil {
		path := resp.Request.URL.Path
		if strings.Contains(path, "/accounts/login") || strings.Contains(path, "/challenge") {
			return PageLogin, body, nil
		}
	}

	class, err := classifyMarkup(strings.NewReader(string(body)))
	return class, body, err
}

func classifyMarkup(r io.Reader) (PageClass, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PageUnknown, err
	}

	title := strings.ToLower(doc.Find("title").First().Text())
	switch {
	case strings.Contains(title, "page not found"),
		strings.Contains(title, "isn't available"):
		return PageNotFound, nil
	case strings.Contains(title, "login"):
		return PageLogin, nil
	}

	if doc.Find(`form input[name="username"]`).Length() > 0 {
		return PageLogin, nil
	}

	bodyText := strings.ToLower(doc.Find("body").Text())
	switch {
	case strings.Contains(bodyText, "sorry, this page isn't available"):
		return PageNotFound, nil
	case strings.Contains(bodyText, "please wait a few minutes"),
		strings.Contains(bodyText, "suspicious activity"):
		return PageBlocked, nil
	}

	if hasProfileContent(doc) {
		return PageProfile, nil
	}

	return PageUnknown, nil
}

// hasProfileContent looks for the markers a real profile page always carries
func hasProfileContent(doc *goquery.Document) bool {
	if content, ok := doc.Find(`meta[property="og:type"]`).Attr("content"); ok && content == "profile" {
		return true
	}
	if doc.Find(`meta[property="og:title"]`).Length() > 0 &&
		doc.Find(`meta[property="og:image"]`).Length() > 0 {
		return true
	}
	return doc.Find("header img").Length() > 0
}
