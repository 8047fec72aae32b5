// Package contentfilter flags message text that shares off-platform contact
// details. It is a heuristic: obfuscated handles slip through and unrelated
// digit runs can match the phone category.
package contentfilter

import "regexp"

// Category labels
const (
	CategoryInstagram = "instagram"
	CategoryWhatsApp  = "whatsapp"
	CategoryPhone     = "phone"
	CategoryEmail     = "email"
	CategoryTelegram  = "telegram"
	CategorySnapchat  = "snapchat"
	CategoryFacebook  = "facebook"
	CategoryTikTok    = "tiktok"
)

type rule struct {
	category string
	pattern  *regexp.Regexp
}

// rules are evaluated in this order; Classify reports matches in the same order.
var rules = []rule{
	{CategoryInstagram, regexp.MustCompile(`(?i)(instagram\.com|\binsta(gram|gr)?\b|\big\s*[:=@])`)},
	{CategoryWhatsApp, regexp.MustCompile(`(?i)(whats\s*app?|wa\.me/|\bwhatsap+\b|\bwtsp\b|\bwsp\b)`)},
	{CategoryPhone, regexp.MustCompile(`(\+|\b00)?\d[\d\s.\-()]{7,}\d`)},
	{CategoryEmail, regexp.MustCompile(`(?i)[a-z0-9._%+\-]+\s*(@|\[at\]|\(at\))\s*[a-z0-9\-]+\s*(\.|\[dot\]|\(dot\))\s*[a-z]{2,}`)},
	{CategoryTelegram, regexp.MustCompile(`(?i)(t\.me/|telegram|\btg\s*[:=@])`)},
	{CategorySnapchat, regexp.MustCompile(`(?i)(snapchat|\bsnap\s*[:=@]|\bsc\s*[:=@])`)},
	{CategoryFacebook, regexp.MustCompile(`(?i)(facebook|fb\.com|\bfb\b|messenger|m\.me/)`)},
	{CategoryTikTok, regexp.MustCompile(`(?i)(tik\s*tok|vm\.tiktok)`)},
}

// Classify returns every category matched by text. All rules run, so callers
// can report each violation at once. A clean text yields an empty slice.
func Classify(text string) []string {
	matched := make([]string, 0)
	if text == "" {
		return matched
	}

	for _, r := range rules {
		if r.pattern.MatchString(text) {
			matched = append(matched, r.category)
		}
	}

	return matched
}

// Categories returns all known category labels.
func Categories() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.category
	}
	return out
}
