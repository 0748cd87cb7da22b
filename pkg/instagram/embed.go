package instagram

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var cdnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://[^\s"'<>]+\.cdninstagram\.com/[^\s"'<>]+\.(?:jpg|png|mp4)`),
	regexp.MustCompile(`https://scontent[^\s"'<>]+\.cdninstagram\.com/[^\s"'<>]+\.(?:jpg|png|mp4)`),
	regexp.MustCompile(`https://[^\s"'<>]+\.fbcdn\.net/[^\s"'<>]+\.(?:jpg|png|mp4)`),
}

var embedSelectors = []string{
	"video[src]",
	"source[src]",
	"img.EmbeddedMediaImage[src]",
}

// ExtractMediaURLs pulls media URLs out of an embed page. Tagged media
// elements come first, then bare CDN links found anywhere in the page.
// The result is deduplicated and keeps first-seen order.
func ExtractMediaURLs(html string) []string {
	var found []string

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		for _, sel := range embedSelectors {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				if src, ok := s.Attr("src"); ok {
					found = append(found, src)
				}
			})
		}
	}

	for _, re := range cdnPatterns {
		for _, m := range re.FindAllString(html, -1) {
			found = append(found, strings.ReplaceAll(m, "&amp;", "&"))
		}
	}

	seen := make(map[string]bool, len(found))
	urls := make([]string, 0, len(found))
	for _, u := range found {
		if !strings.HasPrefix(u, "http") || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// PreferVideo returns the first .mp4 URL, or the first URL when there is none
func PreferVideo(urls []string) string {
	for _, u := range urls {
		if strings.Contains(u, ".mp4") {
			return u
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}
