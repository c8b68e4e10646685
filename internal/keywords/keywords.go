// Package keywords ranks the terms of a text by TF-IDF.
package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTopN is used when the caller asks for a non-positive count
	DefaultTopN = 5

	// DefaultIDF is assigned to terms missing from the IDF table
	DefaultIDF = 1.5

	minTermLength = 3
)

var tokenPattern = regexp.MustCompile(`\b\w+\b`)

// Lexicon supplies stopwords and IDF weights. *lexicon.Loader satisfies it.
type Lexicon interface {
	IsStopword(word string) bool
	IDF(term string) (float64, bool)
}

// Keyword is a scored term
type Keyword struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Extractor scores terms against a lexicon
type Extractor struct {
	lexicon Lexicon
}

// NewExtractor creates an Extractor backed by lex
func NewExtractor(lex Lexicon) *Extractor {
	return &Extractor{lexicon: lex}
}

// Extract returns up to topN terms in descending score order
func (e *Extractor) Extract(text string, topN int) []string {
	scored := e.ExtractScored(text, topN)
	terms := make([]string, len(scored))
	for i, k := range scored {
		terms[i] = k.Term
	}
	return terms
}

// ExtractScored returns up to topN keywords with their scores. Terms with
// equal scores keep the order in which they first appear in the text.
func (e *Extractor) ExtractScored(text string, topN int) []Keyword {
	if topN <= 0 {
		topN = DefaultTopN
	}

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return []Keyword{}
	}

	counts := make(map[string]int)
	var order []string
	for _, token := range tokens {
		if utf8.RuneCountInString(token) < minTermLength || e.lexicon.IsStopword(token) {
			continue
		}
		if _, seen := counts[token]; !seen {
			order = append(order, token)
		}
		counts[token]++
	}

	total := float64(len(tokens))
	keywords := make([]Keyword, 0, len(order))
	for _, term := range order {
		idf, ok := e.lexicon.IDF(term)
		if !ok {
			idf = DefaultIDF
		}
		tf := float64(counts[term]) / total
		keywords = append(keywords, Keyword{
			Term:  term,
			Score: tf * idf,
			Count: counts[term],
		})
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Score > keywords[j].Score
	})

	if len(keywords) > topN {
		keywords = keywords[:topN]
	}
	return keywords
}
