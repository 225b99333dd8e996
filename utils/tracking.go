package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// TrackingPathSegment is the path fragment every tracking redirect URL carries.
// Skip detection matches on the segment so historical URLs without the /api
// prefix are still recognized as already wrapped.
const TrackingPathSegment = "/track/click/"

// TrackingLinkData is the per-link metadata encoded into a tracking URL.
// It lives only for the duration of a wrap call and the later click request.
type TrackingLinkData struct {
	EmailID   string `json:"email_id"`
	URL       string `json:"url"`
	LinkID    string `json:"link_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
}

// LinkTrackingResult reports the outcome of a wrap pass.
// TotalLinks counts every match found, including skipped and duplicate ones;
// WrappedLinks counts only the links actually rewritten.
type LinkTrackingResult struct {
	HTML         string `json:"html"`
	Text         string `json:"text"`
	TotalLinks   int    `json:"total_links"`
	WrappedLinks int    `json:"wrapped_links"`
}

// LinkTracker rewrites outbound links in email bodies into self-hosted
// tracking redirects under BaseURL.
type LinkTracker struct {
	BaseURL string
}

func NewLinkTracker(baseURL string) *LinkTracker {
	return &LinkTracker{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

var (
	// Pattern matching, not a DOM parser. Handles the common well-formed
	// anchor case; anything it cannot match is left untouched.
	anchorPattern = regexp.MustCompile(`(?is)<a\s[^>]*?href=(?:"([^"]*)"|'([^']*)')[^>]*>(.*?)</a>`)

	// Bare URLs in plain text. The leading group keeps URLs adjacent to
	// quote/bracket/parenthesis characters out of the match.
	bareURLPattern = regexp.MustCompile(`(^|[^"'<>\(\)\[\]])(https?://[^\s"'<>\)\]]+)`)

	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// WrapHTMLLinks rewrites every eligible anchor href in an HTML body.
//
// Positional link ids (link-1, link-2, ...) are assigned across all matches
// in document order, including skipped ones, so ids stay stable no matter
// which subset gets wrapped. A (href, visible text) pair is wrapped once;
// later identical pairs still count toward TotalLinks but keep their
// original href.
func (lt *LinkTracker) WrapHTMLLinks(html, emailID, contactID string) LinkTrackingResult {
	result := LinkTrackingResult{HTML: html}

	matches := anchorPattern.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return result
	}

	var b strings.Builder
	seen := make(map[string]struct{})
	last := 0
	position := 0

	for _, m := range matches {
		position++
		result.TotalLinks++

		hrefStart, hrefEnd := m[2], m[3]
		if hrefStart < 0 {
			hrefStart, hrefEnd = m[4], m[5]
		}
		href := html[hrefStart:hrefEnd]

		if shouldSkipHref(href) {
			continue
		}

		key := href + "|" + visibleText(html[m[6]:m[7]])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		tracked := lt.CreateTrackingURL(TrackingLinkData{
			EmailID:   emailID,
			URL:       href,
			LinkID:    fmt.Sprintf("link-%d", position),
			ContactID: contactID,
		})

		b.WriteString(html[last:hrefStart])
		b.WriteString(tracked)
		last = hrefEnd
		result.WrappedLinks++
	}

	b.WriteString(html[last:])
	result.HTML = b.String()
	return result
}

// WrapTextLinks rewrites bare URLs in a plain-text body. Positions are an
// independent stream from the HTML pass; both reference the same email id.
func (lt *LinkTracker) WrapTextLinks(text, emailID, contactID string) LinkTrackingResult {
	result := LinkTrackingResult{Text: text}

	matches := bareURLPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return result
	}

	var b strings.Builder
	last := 0
	position := 0

	for _, m := range matches {
		position++
		result.TotalLinks++

		urlStart, urlEnd := m[4], m[5]
		raw := text[urlStart:urlEnd]

		if strings.Contains(raw, TrackingPathSegment) {
			continue
		}

		tracked := lt.CreateTrackingURL(TrackingLinkData{
			EmailID:   emailID,
			URL:       raw,
			LinkID:    fmt.Sprintf("link-%d", position),
			ContactID: contactID,
		})

		b.WriteString(text[last:urlStart])
		b.WriteString(tracked)
		last = urlEnd
		result.WrappedLinks++
	}

	b.WriteString(text[last:])
	result.Text = b.String()
	return result
}

// WrapEmailLinks runs both passes and merges counts. An empty text body
// passes through unchanged and contributes zero to the totals.
func (lt *LinkTracker) WrapEmailLinks(htmlContent, textContent, emailID, contactID string) LinkTrackingResult {
	htmlResult := lt.WrapHTMLLinks(htmlContent, emailID, contactID)

	result := LinkTrackingResult{
		HTML:         htmlResult.HTML,
		Text:         textContent,
		TotalLinks:   htmlResult.TotalLinks,
		WrappedLinks: htmlResult.WrappedLinks,
	}

	if textContent != "" {
		textResult := lt.WrapTextLinks(textContent, emailID, contactID)
		result.Text = textResult.Text
		result.TotalLinks += textResult.TotalLinks
		result.WrappedLinks += textResult.WrappedLinks
	}

	return result
}

// CreateTrackingURL builds the redirect URL for one link. The base is our
// own public origin, not the delivery provider's domain; that is what makes
// click attribution possible.
func (lt *LinkTracker) CreateTrackingURL(data TrackingLinkData) string {
	trackingURL := fmt.Sprintf("%s/api%s%s?url=%s",
		lt.BaseURL, TrackingPathSegment, url.PathEscape(data.EmailID), url.QueryEscape(data.URL))
	if data.LinkID != "" {
		trackingURL += "&linkId=" + url.QueryEscape(data.LinkID)
	}
	if data.ContactID != "" {
		trackingURL += "&contactId=" + url.QueryEscape(data.ContactID)
	}
	return trackingURL
}

// ParseTrackingURL is the inverse of CreateTrackingURL.
func ParseTrackingURL(raw string) (TrackingLinkData, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return TrackingLinkData{}, fmt.Errorf("invalid tracking URL: %w", err)
	}

	idx := strings.Index(u.Path, TrackingPathSegment)
	if idx == -1 {
		return TrackingLinkData{}, fmt.Errorf("not a tracking URL: %s", u.Path)
	}

	emailID := strings.Trim(u.Path[idx+len(TrackingPathSegment):], "/")
	if emailID == "" {
		return TrackingLinkData{}, fmt.Errorf("tracking URL missing email id")
	}

	q := u.Query()
	destination := q.Get("url")
	if destination == "" {
		return TrackingLinkData{}, fmt.Errorf("tracking URL missing destination")
	}

	return TrackingLinkData{
		EmailID:   emailID,
		URL:       destination,
		LinkID:    q.Get("linkId"),
		ContactID: q.Get("contactId"),
	}, nil
}

// ParseLinkPosition extracts the numeric position from a link-N id.
// Returns nil when the id is absent or unparseable.
func ParseLinkPosition(linkID string) *int {
	rest, ok := strings.CutPrefix(linkID, "link-")
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return nil
	}
	return &n
}

func shouldSkipHref(href string) bool {
	if strings.Contains(href, TrackingPathSegment) {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "#", "javascript:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// visibleText reduces anchor inner markup to the text a recipient sees,
// which is the second half of the de-duplication key.
func visibleText(inner string) string {
	stripped := htmlTagPattern.ReplaceAllString(inner, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
}
