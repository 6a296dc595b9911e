package paywatch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fieldStrategy extracts one candidate value for a metadata field.
// Strategies for a field are evaluated in order; the first non-empty
// result wins and later strategies are not consulted.
type fieldStrategy struct {
	name    string
	extract func(*goquery.Document) string
}

func metaContent(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		content, _ := doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(content)
	}
}

func elementText(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}
}

var titleStrategies = []fieldStrategy{
	{"title-tag", elementText("title")},
	{"first-heading", elementText("h1")},
	{"og-title", metaContent(`meta[property="og:title"]`)},
	{"meta-title", metaContent(`meta[name="title"]`)},
}

var authorStrategies = []fieldStrategy{
	{"meta-author", metaContent(`meta[name="author"]`)},
	{"author-span", elementText(`span[class*="author"]`)},
	{"byline", elementText(`div[class*="byline"]`)},
	{"article-author", metaContent(`meta[property="article:author"]`)},
}

var dateStrategies = []fieldStrategy{
	{"time-datetime", func(doc *goquery.Document) string {
		datetime, _ := doc.Find("time[datetime]").First().Attr("datetime")
		return strings.TrimSpace(datetime)
	}},
	{"published-time", metaContent(`meta[property="article:published_time"]`)},
	{"meta-date", metaContent(`meta[name="date"]`)},
}

var descriptionStrategies = []fieldStrategy{
	{"meta-description", metaContent(`meta[name="description"]`)},
	{"og-description", metaContent(`meta[property="og:description"]`)},
}

func firstNonEmpty(doc *goquery.Document, strategies []fieldStrategy) string {
	for _, s := range strategies {
		if v := s.extract(doc); v != "" {
			return v
		}
	}
	return ""
}

// ExtractMetadata parses article metadata out of an HTML page. It never
// fails: malformed input degrades to empty fields.
func ExtractMetadata(html, sourceURL string) ArticleMetadata {
	meta := ArticleMetadata{SourceURL: sourceURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}

	meta.Title = firstNonEmpty(doc, titleStrategies)
	meta.Author = firstNonEmpty(doc, authorStrategies)
	meta.PublicationDate = firstNonEmpty(doc, dateStrategies)
	meta.Description = firstNonEmpty(doc, descriptionStrategies)

	if keywords, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				meta.Keywords = append(meta.Keywords, kw)
			}
		}
	}

	return meta
}

// TitleFromURL derives a best-effort title from the URL's last path
// segment: extension stripped, dashes and underscores become spaces.
// News sites commonly encode the headline in the slug, so this is a
// usable search query when the page itself yields no title.
func TitleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return ""
	}
	segment := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		segment = path[i+1:]
	}
	if i := strings.Index(segment, "."); i >= 0 {
		segment = segment[:i]
	}

	segment = strings.ReplaceAll(segment, "-", " ")
	segment = strings.ReplaceAll(segment, "_", " ")
	return strings.TrimSpace(segment)
}
