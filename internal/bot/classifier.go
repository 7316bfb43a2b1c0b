// Package bot classifies inbound requests as social preview crawlers or
// human browsers using User-Agent token matching.
package bot

import "strings"

// defaultTokens are matched case-insensitively as substrings. Broad tokens
// like "bot" and "google" deliberately overlap the specific ones.
var defaultTokens = []string{
	"facebookexternalhit",
	"facebot",
	"facebook",
	"twitterbot",
	"twitter",
	"linkedinbot",
	"linkedin",
	"pinterest",
	"googlebot",
	"google",
	"bot",
	"whatsapp",
	"telegram",
	"slack",
	"discord",
	"bingbot",
	"yandex",
	"spider",
	"crawler",
	"embedly",
	"quora link preview",
	"outbrain",
	"vkshare",
	"w3c_validator",
	"redditbot",
	"applebot",
	"skypeuripreview",
	"iframely",
}

// Classifier matches User-Agent strings against a fixed token list.
type Classifier struct {
	tokens []string
}

// New builds a Classifier from the default tokens plus any extras. Extras are
// lowercased, trimmed and deduplicated.
func New(extra ...string) *Classifier {
	seen := make(map[string]struct{}, len(defaultTokens)+len(extra))
	tokens := make([]string, 0, len(defaultTokens)+len(extra))
	for _, raw := range append(append([]string(nil), defaultTokens...), extra...) {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return &Classifier{tokens: tokens}
}

// IsBot reports whether userAgent looks like an automated preview fetcher.
func (c *Classifier) IsBot(userAgent string) bool {
	_, ok := c.Match(userAgent)
	return ok
}

// Match returns the first token found in userAgent.
func (c *Classifier) Match(userAgent string) (string, bool) {
	if c == nil {
		return "", false
	}
	ua := strings.ToLower(userAgent)
	if strings.TrimSpace(ua) == "" {
		return "", false
	}
	for _, token := range c.tokens {
		if strings.Contains(ua, token) {
			return token, true
		}
	}
	return "", false
}

var defaultClassifier = New()

// IsBot classifies userAgent with the default token list.
func IsBot(userAgent string) bool {
	return defaultClassifier.IsBot(userAgent)
}
