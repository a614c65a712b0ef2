package domain

import "regexp"

const (
	// InitialTrust is the score every unknown sender starts with
	InitialTrust = 100
	// DefaultTrustPenalty is deducted for each suspicious message
	DefaultTrustPenalty = 15
	// DefaultBlockThreshold blocks a sender once the score falls to it
	DefaultBlockThreshold = 20
)

// TrustScore is the reputation of a sender
type TrustScore struct {
	Sender  string `json:"sender"`
	Score   int    `json:"score"`
	Blocked bool   `json:"blocked"`
}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://\S*\.(exe|bin|scr|bat|vbs|js|apk|msi|jar)\b`),
	regexp.MustCompile(`(?i)script.*alert`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)base64_decode`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)onmouseover\s*=`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)document\.cookie`),
	regexp.MustCompile(`(?i)window\.location`),
	regexp.MustCompile(`(?i)\b(phishing|scam|fraud)\b`),
	regexp.MustCompile(`(?i)bitcoin.*wallet`),
	regexp.MustCompile(`(?i)password.*reset`),
	regexp.MustCompile(`(?i)bank.*account`),
	regexp.MustCompile(`(?i)https?://\S*(bit\.ly|tinyurl|shorte\.st)`),
}

// IsSuspicious reports whether text matches a known malicious pattern
func IsSuspicious(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var anyLinkPattern = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

// ContainsLink reports whether text carries a URL
func ContainsLink(text string) bool {
	return anyLinkPattern.MatchString(text)
}
