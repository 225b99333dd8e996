package utils

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHTMLLinks(t *testing.T) {
	lt := NewLinkTracker("https://app.uplinex.io/")

	t.Run("wraps a simple anchor", func(t *testing.T) {
		html := `<p>Check out <a href="https://example.com/offer">our offer</a> today.</p>`
		result := lt.WrapHTMLLinks(html, "42", "7")

		assert.Equal(t, 1, result.TotalLinks)
		assert.Equal(t, 1, result.WrappedLinks)
		expected := `https://app.uplinex.io/api/track/click/42?url=` +
			url.QueryEscape("https://example.com/offer") +
			`&linkId=link-1&contactId=7`
		assert.Contains(t, result.HTML, `href="`+expected+`"`)
		assert.NotContains(t, result.HTML, `href="https://example.com/offer"`)
	})

	t.Run("handles single-quoted href", func(t *testing.T) {
		html := `<a href='https://example.com/a'>go</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 1, result.WrappedLinks)
		assert.Contains(t, result.HTML, "/api/track/click/42?url=")
	})

	t.Run("preserves surrounding markup", func(t *testing.T) {
		html := `<div>before <a class="btn" href="https://example.com" target="_blank">click</a> after</div>`
		result := lt.WrapHTMLLinks(html, "1", "")

		assert.True(t, strings.HasPrefix(result.HTML, `<div>before <a class="btn" href="`))
		assert.True(t, strings.HasSuffix(result.HTML, `" target="_blank">click</a> after</div>`))
	})

	t.Run("skips non-http schemes but still counts them", func(t *testing.T) {
		tests := []struct {
			name string
			href string
		}{
			{"mailto", "mailto:team@example.com"},
			{"tel", "tel:+15551234567"},
			{"fragment", "#section-2"},
			{"javascript", "javascript:void(0)"},
			{"javascript uppercase", "JavaScript:alert(1)"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				html := fmt.Sprintf(`<a href="%s">link</a>`, tt.href)
				result := lt.WrapHTMLLinks(html, "42", "")

				assert.Equal(t, 1, result.TotalLinks)
				assert.Equal(t, 0, result.WrappedLinks)
				assert.Equal(t, html, result.HTML)
			})
		}
	})

	t.Run("leaves already wrapped links untouched", func(t *testing.T) {
		html := `<a href="https://app.uplinex.io/api/track/click/42?url=https%3A%2F%2Fexample.com">go</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 1, result.TotalLinks)
		assert.Equal(t, 0, result.WrappedLinks)
		assert.Equal(t, html, result.HTML)
	})

	t.Run("recognizes wrapped links without the api prefix", func(t *testing.T) {
		html := `<a href="https://old.uplinex.io/track/click/9?url=x">go</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 0, result.WrappedLinks)
		assert.Equal(t, html, result.HTML)
	})

	t.Run("wraps identical href and text only once", func(t *testing.T) {
		html := `<a href="https://example.com">buy</a> and again <a href="https://example.com">buy</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 2, result.TotalLinks)
		assert.Equal(t, 1, result.WrappedLinks)
		// The second anchor keeps its original destination.
		assert.Contains(t, result.HTML, `<a href="https://example.com">buy</a>`)
	})

	t.Run("same href with different text wraps separately", func(t *testing.T) {
		html := `<a href="https://example.com">header</a> <a href="https://example.com">footer</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 2, result.TotalLinks)
		assert.Equal(t, 2, result.WrappedLinks)
		assert.Contains(t, result.HTML, "linkId=link-1")
		assert.Contains(t, result.HTML, "linkId=link-2")
	})

	t.Run("dedup key uses visible text not raw markup", func(t *testing.T) {
		html := `<a href="https://example.com"><b>buy</b></a> <a href="https://example.com">buy</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		// Stripped markup makes both anchors read "buy".
		assert.Equal(t, 1, result.WrappedLinks)
	})

	t.Run("positions stay stable when earlier links are skipped", func(t *testing.T) {
		html := `<a href="mailto:a@b.com">mail us</a> <a href="https://example.com">site</a>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 2, result.TotalLinks)
		assert.Equal(t, 1, result.WrappedLinks)
		assert.Contains(t, result.HTML, "linkId=link-2")
		assert.NotContains(t, result.HTML, "linkId=link-1")
	})

	t.Run("no anchors returns input unchanged", func(t *testing.T) {
		html := `<p>plain paragraph, https://example.com in prose is not an anchor</p>`
		result := lt.WrapHTMLLinks(html, "42", "")

		assert.Equal(t, 0, result.TotalLinks)
		assert.Equal(t, html, result.HTML)
	})

	t.Run("omits contactId when empty", func(t *testing.T) {
		result := lt.WrapHTMLLinks(`<a href="https://example.com">x</a>`, "42", "")
		assert.NotContains(t, result.HTML, "contactId")
	})
}

func TestWrapTextLinks(t *testing.T) {
	lt := NewLinkTracker("https://app.uplinex.io")

	t.Run("wraps a bare url", func(t *testing.T) {
		text := "Visit https://example.com/promo for details."
		result := lt.WrapTextLinks(text, "42", "7")

		assert.Equal(t, 1, result.TotalLinks)
		assert.Equal(t, 1, result.WrappedLinks)
		assert.Contains(t, result.Text, "/api/track/click/42?url=")
		assert.Contains(t, result.Text, "contactId=7")
		assert.True(t, strings.HasPrefix(result.Text, "Visit "))
		assert.True(t, strings.HasSuffix(result.Text, " for details."))
	})

	t.Run("wraps url at start of text", func(t *testing.T) {
		result := lt.WrapTextLinks("https://example.com is live", "42", "")
		assert.Equal(t, 1, result.WrappedLinks)
	})

	t.Run("skips already wrapped urls", func(t *testing.T) {
		text := "see https://app.uplinex.io/api/track/click/9?url=x for the offer"
		result := lt.WrapTextLinks(text, "42", "")

		assert.Equal(t, 1, result.TotalLinks)
		assert.Equal(t, 0, result.WrappedLinks)
		assert.Equal(t, text, result.Text)
	})

	t.Run("assigns independent positions", func(t *testing.T) {
		text := "first https://a.example.com then https://b.example.com done"
		result := lt.WrapTextLinks(text, "42", "")

		assert.Equal(t, 2, result.WrappedLinks)
		assert.Contains(t, result.Text, "linkId=link-1")
		assert.Contains(t, result.Text, "linkId=link-2")
	})
}

func TestWrapEmailLinks(t *testing.T) {
	lt := NewLinkTracker("https://app.uplinex.io")

	t.Run("merges counts from both bodies", func(t *testing.T) {
		html := `<a href="https://example.com">site</a>`
		text := "Visit https://example.com now"
		result := lt.WrapEmailLinks(html, text, "42", "7")

		assert.Equal(t, 2, result.TotalLinks)
		assert.Equal(t, 2, result.WrappedLinks)
		assert.Contains(t, result.HTML, "/api/track/click/42")
		assert.Contains(t, result.Text, "/api/track/click/42")
	})

	t.Run("empty text body passes through", func(t *testing.T) {
		result := lt.WrapEmailLinks(`<a href="https://example.com">x</a>`, "", "42", "")

		assert.Equal(t, "", result.Text)
		assert.Equal(t, 1, result.TotalLinks)
		assert.Equal(t, 1, result.WrappedLinks)
	})
}

func TestTrackingURLRoundTrip(t *testing.T) {
	lt := NewLinkTracker("https://app.uplinex.io")

	tests := []struct {
		name string
		data TrackingLinkData
	}{
		{
			name: "plain url",
			data: TrackingLinkData{EmailID: "42", URL: "https://example.com/page"},
		},
		{
			name: "query string and ampersands",
			data: TrackingLinkData{EmailID: "42", URL: "https://example.com/search?q=a&b=c", LinkID: "link-3", ContactID: "9"},
		},
		{
			name: "spaces and unicode",
			data: TrackingLinkData{EmailID: "42", URL: "https://example.com/café?name=josé m", LinkID: "link-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := lt.CreateTrackingURL(tt.data)
			parsed, err := ParseTrackingURL(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.data, parsed)
		})
	}

	t.Run("rejects non tracking urls", func(t *testing.T) {
		_, err := ParseTrackingURL("https://example.com/other/path")
		assert.Error(t, err)
	})

	t.Run("rejects missing destination", func(t *testing.T) {
		_, err := ParseTrackingURL("https://app.uplinex.io/api/track/click/42")
		assert.Error(t, err)
	})
}

func TestParseLinkPosition(t *testing.T) {
	tests := []struct {
		linkID string
		want   *int
	}{
		{"link-1", Pointer(1)},
		{"link-17", Pointer(17)},
		{"", nil},
		{"link-", nil},
		{"link-abc", nil},
		{"button-2", nil},
	}

	for _, tt := range tests {
		got := ParseLinkPosition(tt.linkID)
		if tt.want == nil {
			assert.Nil(t, got, "linkID %q", tt.linkID)
		} else {
			require.NotNil(t, got, "linkID %q", tt.linkID)
			assert.Equal(t, *tt.want, *got)
		}
	}
}
