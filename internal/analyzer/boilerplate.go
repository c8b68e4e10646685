package analyzer

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// ParagraphScore is the quality score of one paragraph
type ParagraphScore struct {
	Text             string
	Score            float64
	WordCount        int
	LinkDensity      float64
	StopwordRatio    float64
	ProperNounCount  int
	CapitalizedRatio float64
	AvgWordLength    float64
	HasImageMarkers  bool
	IsBoilerplate    bool
	Reasons          []string
}

var (
	imageMarkers = []string{
		"image source:", "photo by", "credit:", "getty images",
		"photograph:", "photographer:", "©", "copyright",
		"image caption:", "picture:", "courtesy of",
		"[image:", "[photo:", "source:", "via:",
	}

	boilerplatePatterns = []string{
		"click here", "read more", "subscribe", "sign up", "newsletter",
		"share this", "follow us", "connect with us", "related articles",
		"you may also like", "recommended for you", "advertisement",
		"sponsored content", "cookie policy", "privacy policy",
		"terms of service", "all rights reserved", "view comments",
		"post comment", "log in to", "register now", "free trial",
		"buy now", "shop now", "add to cart", "learn more about",
		"trending now", "popular posts", "recent posts", "categories:",
		"tags:", "filed under:", "posted in:", "previous article",
		"next article", "back to top", "skip to content",
	}

	listItemPattern   = regexp.MustCompile(`^\d+\.`)
	datelinePattern   = regexp.MustCompile(`(?i)posted on|published on|updated on|last modified|^\w+\s+\d{1,2},\s+\d{4}`)
	bylinePattern     = regexp.MustCompile(`(?i)^by\s+[A-Z][a-z]+|^written by|^author:`)
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)
)

// boilerplateFilter drops paragraphs that read like navigation, adverts,
// share prompts or image credits
type boilerplateFilter struct {
	isStopword func(string) bool
	logger     *slog.Logger
}

// Clean returns text without its low-quality paragraphs, rejoined with blank
// lines. Paragraphs matching a boilerplate pattern are always dropped; the
// score threshold only applies when there is more than one paragraph.
func (f boilerplateFilter) Clean(text string) (string, int) {
	paragraphs := splitIntoParagraphs(text)
	if len(paragraphs) == 0 {
		return text, 0
	}

	scores := make([]ParagraphScore, len(paragraphs))
	for i, para := range paragraphs {
		scores[i] = f.scoreParagraph(para)
	}

	threshold := calculateDynamicThreshold(scores)
	single := len(paragraphs) == 1

	kept := make([]string, 0, len(paragraphs))
	removed := 0
	for i, score := range scores {
		if !score.IsBoilerplate && (single || score.Score >= threshold) {
			kept = append(kept, score.Text)
			continue
		}
		removed++
		f.logger.Debug("dropped paragraph",
			"index", i,
			"score", score.Score,
			"reasons", strings.Join(score.Reasons, ","),
		)
	}

	return strings.Join(kept, "\n\n"), removed
}

func (f boilerplateFilter) scoreParagraph(para string) ParagraphScore {
	score := ParagraphScore{
		Text:    para,
		Score:   0.5,
		Reasons: []string{},
	}

	trimmed := strings.TrimSpace(para)
	lower := strings.ToLower(para)

	// boilerplate wins over everything else, including the length check
	for _, pattern := range boilerplatePatterns {
		if strings.Contains(lower, pattern) {
			score.IsBoilerplate = true
			score.Score -= 0.5
			score.Reasons = append(score.Reasons, "boilerplate_pattern")
			break
		}
	}

	if len(trimmed) < 20 {
		score.Score = 0
		score.Reasons = append(score.Reasons, "too_short")
		return score
	}

	words := strings.Fields(para)
	score.WordCount = len(words)

	switch {
	case score.WordCount < 10:
		score.Score -= 0.3
		score.Reasons = append(score.Reasons, "very_few_words")
	case score.WordCount >= 20 && score.WordCount <= 200:
		score.Score += 0.2
		score.Reasons = append(score.Reasons, "good_length")
	case score.WordCount > 300:
		score.Score -= 0.1
		score.Reasons = append(score.Reasons, "very_long")
	}

	links := strings.Count(lower, "http://") +
		strings.Count(lower, "https://") +
		strings.Count(lower, "www.") +
		strings.Count(para, "→") +
		strings.Count(para, "»")
	score.LinkDensity = float64(links) / float64(score.WordCount)
	if score.LinkDensity > 0.1 {
		score.Score -= 0.4
		score.Reasons = append(score.Reasons, "high_link_density")
	}

	stopwords := 0
	totalLength := 0
	for _, word := range words {
		totalLength += len(word)
		if f.isStopword(strings.ToLower(strings.TrimFunc(word, unicode.IsPunct))) {
			stopwords++
		}
	}
	score.StopwordRatio = float64(stopwords) / float64(score.WordCount)
	if score.StopwordRatio >= 0.35 && score.StopwordRatio <= 0.65 {
		score.Score += 0.15
		score.Reasons = append(score.Reasons, "natural_stopword_ratio")
	} else if score.StopwordRatio < 0.25 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "low_stopwords")
	}

	score.ProperNounCount = len(properNounPattern.FindAllString(para, -1))
	if score.ProperNounCount >= 2 {
		score.Score += 0.1
		score.Reasons = append(score.Reasons, "has_proper_nouns")
	}

	score.AvgWordLength = float64(totalLength) / float64(score.WordCount)
	if score.AvgWordLength >= 4.0 && score.AvgWordLength <= 6.0 {
		score.Score += 0.1
		score.Reasons = append(score.Reasons, "balanced_word_length")
	}

	for _, marker := range imageMarkers {
		if strings.Contains(lower, marker) {
			score.HasImageMarkers = true
			score.Score -= 0.4
			score.Reasons = append(score.Reasons, "image_attribution")
			break
		}
	}

	upper, lowerCount := 0, 0
	for _, r := range para {
		if unicode.IsUpper(r) {
			upper++
		} else if unicode.IsLower(r) {
			lowerCount++
		}
	}
	if upper+lowerCount > 0 {
		score.CapitalizedRatio = float64(upper) / float64(upper+lowerCount)
		if score.CapitalizedRatio > 0.5 {
			score.Score -= 0.3
			score.Reasons = append(score.Reasons, "excessive_caps")
		}
	}

	punct := strings.Count(para, "!") + strings.Count(para, "?") +
		strings.Count(para, "*") + strings.Count(para, "#")
	if punct > score.WordCount/5 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "excessive_punctuation")
	}

	isListItem := strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "-") ||
		strings.HasPrefix(trimmed, "*") || listItemPattern.MatchString(trimmed)
	if isListItem && score.WordCount < 15 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "short_list_item")
	}

	mentionsSocial := strings.Contains(lower, "tweet") || strings.Contains(lower, "facebook") ||
		strings.Contains(lower, "instagram") || strings.Contains(lower, "linkedin")
	if mentionsSocial && (strings.Contains(lower, "share on") || strings.Contains(lower, "follow on")) {
		score.Score -= 0.3
		score.Reasons = append(score.Reasons, "social_media_prompt")
	}

	if datelinePattern.MatchString(para) && score.WordCount < 20 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "metadata_line")
	}

	if bylinePattern.MatchString(trimmed) && score.WordCount < 15 {
		score.Score -= 0.2
		score.Reasons = append(score.Reasons, "author_byline")
	}

	score.Score = min(max(score.Score, 0), 1)
	return score
}

// splitIntoParagraphs splits on blank lines; paragraphs over 1000 bytes are
// split again on single newlines
func splitIntoParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var result []string
	for _, para := range strings.Split(text, "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		if len(trimmed) <= 1000 {
			result = append(result, trimmed)
			continue
		}
		for _, line := range strings.Split(trimmed, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				result = append(result, line)
			}
		}
	}
	return result
}

// calculateDynamicThreshold is the median score clamped to [0.3, 0.6]
func calculateDynamicThreshold(scores []ParagraphScore) float64 {
	if len(scores) == 0 {
		return 0.5
	}
	sorted := make([]float64, len(scores))
	for i, s := range scores {
		sorted[i] = s.Score
	}
	sort.Float64s(sorted)

	return min(max(sorted[len(sorted)/2], 0.3), 0.6)
}
