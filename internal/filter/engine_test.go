package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"reportbot/internal/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{name: "exact word", text: "opening done", keyword: "opening", want: true},
		{name: "case insensitive", text: "OPENING done", keyword: "opening", want: true},
		{name: "short suffix", text: "reports attached", keyword: "report", want: true},
		{name: "three letter suffix", text: "reporting now", keyword: "report", want: true},
		{name: "suffix too long", text: "reportings", keyword: "report", want: false},
		{name: "inside another word", text: "misreport", keyword: "report", want: false},
		{name: "with punctuation", text: "Stock, all good!", keyword: "stock", want: true},
		{name: "cyrillic keyword", text: "Отчеты за день", keyword: "отчет", want: true},
		{name: "regex characters are literal", text: "a+b report", keyword: "a+b", want: true},
		{name: "empty text", text: "", keyword: "opening", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Compile(tt.keyword)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.keyword, err)
			}
			got := k.Match(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeywordCategories(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		text    string
		want    []model.Category
	}{
		{
			name:    "categories after keyword",
			keyword: "closing",
			text:    "closing cash, safe and receipts",
			want:    []model.Category{model.CategoryCash, model.CategorySafe, model.CategoryReceipts},
		},
		{
			name:    "words before keyword ignored",
			keyword: "checkout",
			text:    "cash first. checkout safe",
			want:    []model.Category{model.CategorySafe},
		},
		{
			name:    "duplicates and unknown words dropped",
			keyword: "checkout",
			text:    "Checkout SAFE, safe, banana",
			want:    []model.Category{model.CategorySafe},
		},
		{
			name:    "no keyword",
			keyword: "checkout",
			text:    "cash safe",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Compile(tt.keyword)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got := k.Categories(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Categories() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		phrase string
		want   bool
	}{
		{name: "exact", text: "day off", phrase: "day off", want: true},
		{name: "mixed case and spacing", text: "Today is a  DAY\nOFF for me", phrase: "day off", want: true},
		{name: "absent", text: "working", phrase: "day off", want: false},
		{name: "empty phrase", text: "day off", phrase: " ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsPhrase(tt.text, tt.phrase); got != tt.want {
				t.Errorf("ContainsPhrase(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("opening"); err != nil {
		t.Errorf("valid keyword: %v", err)
	}
	if err := Validate("   "); err == nil {
		t.Error("expected error for blank keyword")
	}
}
