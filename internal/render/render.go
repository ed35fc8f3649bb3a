// Package render performs merge-tag substitution on campaign templates.
//
// The token grammar is fixed: {{firstName}}, {{lastName}}, {{email}},
// {{companyName}} and {{unsubscribeUrl}}. Rendering is a pure function of
// the template, the contact and the configured site base URL.
package render

import (
	"net/url"
	"regexp"
	"strings"

	"campaigner/internal/domain"
)

type Renderer struct {
	// BaseURL is the public site root used to build unsubscribe links,
	// e.g. https://example.com.
	BaseURL string
}

// Render substitutes every occurrence of each recognized token.
// Missing contact fields become empty strings, never a literal token
// and never a null-ish placeholder.
func (r Renderer) Render(template string, c domain.Contact) string {
	out := template
	out = strings.ReplaceAll(out, "{{firstName}}", c.FirstName)
	out = strings.ReplaceAll(out, "{{lastName}}", c.LastName)
	out = strings.ReplaceAll(out, "{{email}}", c.Email)
	out = strings.ReplaceAll(out, "{{companyName}}", c.Company)
	out = strings.ReplaceAll(out, "{{unsubscribeUrl}}", r.UnsubscribeURL(c.Email))
	return out
}

// UnsubscribeURL is deterministic for a given base URL and address.
func (r Renderer) UnsubscribeURL(email string) string {
	return strings.TrimRight(r.BaseURL, "/") + "/unsubscribe?email=" + url.QueryEscape(email)
}

var (
	blockRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	brRe    = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</h[1-6]>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	wsRe    = regexp.MustCompile(`[ \t]+`)
)

// StripHTML derives a plaintext fallback from an HTML body. It is not a
// full HTML parser; it only needs to produce something readable for
// clients that refuse HTML parts.
func StripHTML(html string) string {
	out := blockRe.ReplaceAllString(html, "")
	out = brRe.ReplaceAllString(out, "\n")
	out = tagRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "&nbsp;", " ")
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	out = wsRe.ReplaceAllString(out, " ")
	lines := strings.Split(out, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
