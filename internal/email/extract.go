package email

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	excludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`noreply`),
		regexp.MustCompile(`no-reply`),
		regexp.MustCompile(`donotreply`),
		regexp.MustCompile(`webmaster`),
		regexp.MustCompile(`postmaster`),
		regexp.MustCompile(`mailer-daemon`),
		regexp.MustCompile(`^test@`),
		regexp.MustCompile(`^admin@.*\.com$`),
	}

	examplePattern = regexp.MustCompile(`@(.+\.)?example\.`)

	assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".css", ".js"}
)

// Extract returns the business-looking addresses found in a page, lower-cased and in first-seen
// order. Addresses in the raw markup come first, then mailto links the pattern missed (for example
// percent-encoded ones). siteDomain lets a site's own example.* domain through.
func Extract(body []byte, siteDomain string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			return
		}
		if _, dup := seen[addr]; dup {
			return
		}
		if !Acceptable(addr, siteDomain) {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	for _, m := range emailPattern.FindAll(body, -1) {
		add(string(m))
	}
	for _, m := range mailtoAddresses(body) {
		add(m)
	}
	return out
}

func mailtoAddresses(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find(`a[href]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}
		addr := href[len("mailto:"):]
		if idx := strings.Index(addr, "?"); idx != -1 {
			addr = addr[:idx]
		}
		if decoded, err := url.QueryUnescape(addr); err == nil {
			addr = decoded
		}
		if m := emailPattern.FindString(addr); m != "" {
			out = append(out, m)
		}
	})
	return out
}

// Acceptable reports whether a lower-cased address looks like a reachable business contact.
func Acceptable(addr, siteDomain string) bool {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	for _, p := range excludePatterns {
		if p.MatchString(addr) {
			return false
		}
	}
	domain := addr[at+1:]
	if examplePattern.MatchString(addr) && domain != siteDomain {
		return false
	}
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return false
		}
	}
	return true
}

// SiteDomain returns the website's host without a leading www.
func SiteDomain(website string) string {
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
