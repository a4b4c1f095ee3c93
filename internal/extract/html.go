package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// maxDiscoveredLinks caps how many candidate links one index page may
// report; pathological pages should not balloon the run summary.
const maxDiscoveredLinks = 200

var mdConverter = newConverter()

func newConverter() *md.Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return c
}

// extractHTML strips boilerplate down to the main content region and
// renders it as markdown-style text so headings, lists and tables keep
// their structure. Index pages additionally report in-page document links.
func (e *Extractor) extractHTML(body []byte, contentType, pageURL string, index bool) (*Content, error) {
	c := &Content{}

	decoded, err := decodeToUTF8(body, contentType)
	if err != nil {
		// Undeclared or wrong charset: continue on raw bytes rather than
		// dropping the endpoint, but say so.
		c.Warnings = append(c.Warnings, fmt.Sprintf("charset decode failed, using raw bytes: %v", err))
		decoded = body
	}

	base, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(decoded), base)
	mainHTML := ""
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("readability failed, converting full page: %v", err))
		mainHTML = string(decoded)
	} else {
		c.Title = strings.TrimSpace(article.Title)
		mainHTML = article.Content
	}

	text, err := mdConverter.ConvertString(mainHTML)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	c.Text = strings.TrimSpace(text)
	c.Sections = countHeadings(c.Text)
	c.Pages = 1

	if index {
		links, err := discoverLinks(decoded, base)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("link discovery failed: %v", err))
		} else {
			c.Links = links
		}
	}

	if c.Text == "" && len(c.Links) == 0 {
		return nil, ErrNoContent
	}
	return c, nil
}

// decodeToUTF8 normalizes the payload to UTF-8, sniffing the encoding
// from the Content-Type header, a meta tag, or a BOM.
func decodeToUTF8(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func countHeadings(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		hashes := 0
		for hashes < len(t) && t[hashes] == '#' {
			hashes++
		}
		if hashes >= 1 && hashes <= 6 && hashes < len(t) && t[hashes] == ' ' {
			n++
		}
	}
	return n
}

// discoverLinks collects candidate document links present in the page:
// same-host links and anything that looks like a downloadable document.
// Nothing here is fetched; the caller only reports them.
func discoverLinks(page []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return true
		}
		if !candidateDocument(u, base) {
			return true
		}
		u.Fragment = ""
		s := u.String()
		if _, dup := seen[s]; dup {
			return true
		}
		seen[s] = struct{}{}
		links = append(links, s)
		return len(links) < maxDiscoveredLinks
	})
	return links, nil
}

var documentExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".txt": {}, ".rtf": {},
}

func candidateDocument(u, base *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := documentExtensions[ext]; ok {
		return true
	}
	return base != nil && strings.EqualFold(u.Hostname(), base.Hostname())
}
