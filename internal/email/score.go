package email

import (
	"strings"
	"unicode"
)

const (
	domainMatchBonus  = 100
	businessBonus     = 50
	freeProviderMalus = 20
	shortBonus        = 10
	digitsMalus       = 5
	shortLength       = 30
)

var businessTokens = []string{
	"info", "contact", "hello", "mail", "office", "admin",
	"manager", "owner", "restaurant", "reservations", "booking",
}

var freeProviders = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
}

// Score rates how likely addr is the restaurant's public contact.
func Score(addr, siteDomain string) int {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return 0
	}
	score := 0
	if siteDomain != "" && domain == siteDomain {
		score += domainMatchBonus
	}
	for _, token := range businessTokens {
		if strings.Contains(local, token) {
			score += businessBonus
			break
		}
	}
	if _, free := freeProviders[domain]; free {
		score -= freeProviderMalus
	}
	if len(addr) < shortLength {
		score += shortBonus
	}
	if strings.IndexFunc(local, unicode.IsDigit) >= 0 {
		score -= digitsMalus
	}
	return score
}

// Best picks the highest scoring address; ties keep the earliest. A single candidate is returned
// as is.
func Best(addrs []string, siteDomain string) (string, int, bool) {
	if len(addrs) == 0 {
		return "", 0, false
	}
	best, bestScore := addrs[0], Score(addrs[0], siteDomain)
	for _, addr := range addrs[1:] {
		if s := Score(addr, siteDomain); s > bestScore {
			best, bestScore = addr, s
		}
	}
	return best, bestScore, true
}
