// Package readability computes Flesch-Kincaid and SMOG readability metrics.
package readability

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/zombar/textpipeline/internal/models"
)

// ErrInvalidInput is returned for empty text
var ErrInvalidInput = errors.New("readability: text must be a non-empty string")

// ComplexityNA labels text without any words
const ComplexityNA = "N/A"

var (
	wordPattern     = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
	silentEnding    = regexp.MustCompile(`(?:[^aeiouy]es|[^aeiouy]ed|[^aeiouy]e)$`)
	vowelGroup      = regexp.MustCompile(`[aeiouy]{1,2}`)
)

// FleschKincaid computes readability metrics for text. Text that contains no
// words (whitespace or punctuation only) yields a zero result labelled N/A.
func FleschKincaid(text string) (models.ReadabilityResult, error) {
	if text == "" {
		return models.ReadabilityResult{}, ErrInvalidInput
	}

	words := wordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return models.ReadabilityResult{Complexity: ComplexityNA}, nil
	}

	sentences := CountSentences(text)

	syllables := 0
	polysyllables := 0
	for _, word := range words {
		n := CountSyllables(word)
		syllables += n
		if n >= 3 {
			polysyllables++
		}
	}

	wordCount := float64(len(words))
	avgWords := wordCount / float64(sentences)
	avgSyllables := float64(syllables) / wordCount

	ease := clamp(206.835-1.015*avgWords-84.6*avgSyllables, 0, 100)
	grade := math.Max(0, 0.39*avgWords+11.8*avgSyllables-15.59)

	var smog float64
	if sentences < 3 || len(words) < 10 {
		// short-text approximation
		smog = math.Max(0, 3.1291+10*(float64(polysyllables)/wordCount))
	} else {
		smog = 1.043*math.Sqrt(float64(polysyllables)*(30/float64(sentences))) + 3.1291
	}

	return models.ReadabilityResult{
		WordCount:           len(words),
		SentenceCount:       sentences,
		SyllableCount:       syllables,
		PolysyllableCount:   polysyllables,
		AvgWordsPerSentence: round(avgWords, 1),
		AvgSyllablesPerWord: round(avgSyllables, 2),
		ReadingEase:         round(ease, 1),
		GradeLevel:          round(grade, 1),
		SMOGIndex:           round(smog, 1),
		Complexity:          Complexity(ease),
	}, nil
}

// CountSentences counts runs of text closed by terminal punctuation that is
// followed by whitespace or the end of the text. Never returns less than 1.
func CountSentences(text string) int {
	count := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		end := loc[1]
		if end == len(text) || isSpaceAt(text, end) {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// CountSyllables estimates the number of syllables in a single word
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	if len(word) <= 3 {
		return 1
	}

	word = silentEnding.ReplaceAllString(word, "")
	word = strings.TrimPrefix(word, "y")

	count := len(vowelGroup.FindAllString(word, -1))
	if count == 0 {
		return 1
	}
	return count
}

// Complexity maps a reading-ease score onto its label
func Complexity(ease float64) string {
	switch {
	case ease >= 90:
		return "Very Easy"
	case ease >= 80:
		return "Easy"
	case ease >= 70:
		return "Fairly Easy"
	case ease >= 60:
		return "Standard"
	case ease >= 50:
		return "Fairly Difficult"
	case ease >= 30:
		return "Difficult"
	default:
		return "Very Difficult"
	}
}

func isSpaceAt(text string, i int) bool {
	for _, r := range text[i:] {
		return unicode.IsSpace(r)
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
