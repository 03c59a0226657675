// Package filter implements the report keyword matching engine.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"reportbot/internal/model"
)

// maxSuffix is how many word characters may follow a keyword, so that
// inflected forms ("report", "reports", "reported") still match.
const maxSuffix = 3

const wordClass = `[\p{L}\p{N}_]`

// Keyword matches a report keyword inside message text.
type Keyword struct {
	re *regexp.Regexp
}

// Compile builds a case-insensitive fuzzy matcher for keyword.
func Compile(keyword string) (*Keyword, error) {
	word := strings.TrimSpace(keyword)
	if word == "" {
		return nil, fmt.Errorf("keyword is empty")
	}
	pattern := fmt.Sprintf(`(?i)(?:^|[^\p{L}\p{N}_])(%s%s{0,%d})(?:$|[^\p{L}\p{N}_])`,
		regexp.QuoteMeta(word), wordClass, maxSuffix)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile keyword %q: %w", word, err)
	}
	return &Keyword{re: re}, nil
}

// Validate checks whether keyword can be used for matching.
func Validate(keyword string) error {
	_, err := Compile(keyword)
	return err
}

// Match reports whether text contains the keyword.
func (k *Keyword) Match(text string) bool {
	return k.re.MatchString(text)
}

// After returns the text following the first keyword occurrence, or ""
// and false when the keyword does not occur.
func (k *Keyword) After(text string) (string, bool) {
	loc := k.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[3]:], true
}

// Categories returns the vocabulary categories named after the keyword in
// text, in order of appearance and without duplicates. Words outside the
// vocabulary are skipped.
func (k *Keyword) Categories(text string) []model.Category {
	rest, ok := k.After(text)
	if !ok {
		return nil
	}
	return ExtractCategories(rest)
}

// ExtractCategories returns the known categories mentioned in text.
func ExtractCategories(text string) []model.Category {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})

	seen := make(model.Categories)
	var out []model.Category
	for _, w := range words {
		c := model.Category(w)
		if !c.IsKnown() || seen.Has(c) {
			continue
		}
		seen.Add(c)
		out = append(out, c)
	}
	return out
}

// ContainsPhrase reports whether text contains phrase, ignoring case and
// runs of whitespace.
func ContainsPhrase(text, phrase string) bool {
	p := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if p == "" {
		return false
	}
	t := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.Contains(t, p)
}
