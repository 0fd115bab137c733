package app

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxSummaryRunes = 200

// summarizeBody turns the body of an unexpected server answer into a short
// log-friendly line. Proxies and web servers usually answer with an HTML
// error page, so the page title is preferred over raw markup.
func summarizeBody(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	if looksLikeHTML(body) {
		if title := htmlTitle(body); title != "" {
			return title
		}
	}
	return truncateRunes(strings.TrimSpace(strings.ToValidUTF8(string(body), "?")), maxSummaryRunes)
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<title"))
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return firstNonEmpty(
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
