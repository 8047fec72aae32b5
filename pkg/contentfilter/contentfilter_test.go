package contentfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Categories(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"clean", "Assalamu alaykum, how is your family?", []string{}},
		{"empty", "", []string{}},
		{"french mobile", "call me at 0612345678", []string{CategoryPhone}},
		{"spaced mobile", "mon numero 06 12 34 56 78", []string{CategoryPhone}},
		{"international", "+33 6 12 34 56 78", []string{CategoryPhone}},
		{"email", "write to amina.b@example.com", []string{CategoryEmail}},
		{"obfuscated email", "amina [at] example [dot] com", []string{CategoryEmail}},
		{"instagram link", "see instagram.com/amina", []string{CategoryInstagram}},
		{"insta handle", "my insta is amina_b", []string{CategoryInstagram}},
		{"whatsapp", "add me on WhatsApp", []string{CategoryWhatsApp}},
		{"wa link", "wa.me/33612", []string{CategoryWhatsApp}},
		{"telegram", "t.me/amina", []string{CategoryTelegram}},
		{"snapchat", "snap: amina_b", []string{CategorySnapchat}},
		{"facebook", "find me on facebook", []string{CategoryFacebook}},
		{"tiktok", "my tik tok has videos", []string{CategoryTikTok}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassify_ReportsEveryCategory(t *testing.T) {
	got := Classify("whatsapp 0612345678 or amina@example.com, also on telegram")

	assert.Equal(t, []string{CategoryWhatsApp, CategoryPhone, CategoryEmail, CategoryTelegram}, got)
}

func TestClassify_ShortNumbersAreClean(t *testing.T) {
	assert.Empty(t, Classify("I am 29 and live 15 minutes from the mosque"))
}

func TestCategories_ListsAllRules(t *testing.T) {
	cats := Categories()

	assert.Len(t, cats, 8)
	assert.Contains(t, cats, CategoryPhone)
	assert.Contains(t, cats, CategoryTikTok)
}
