package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zombar/textpipeline/internal/keywords"
	"github.com/zombar/textpipeline/internal/readability"
	"github.com/zombar/textpipeline/internal/textdiff"
)

// TruncateConfig configures the truncate operation
type TruncateConfig struct {
	MaxLength int    `json:"maxLength" yaml:"maxLength"`
	Suffix    string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

// KeywordConfig configures keyword extraction
type KeywordConfig struct {
	TopN int `json:"topN" yaml:"topN"`
}

// CompareConfig configures text comparison
type CompareConfig struct {
	CompareWith string `json:"compareWith" yaml:"compareWith"`
}

// DefaultTruncateSuffix is appended when no suffix is configured
const DefaultTruncateSuffix = "..."

var (
	punctuationPattern = regexp.MustCompile(`[\p{P}]`)
	digitPattern       = regexp.MustCompile(`\p{Nd}`)
	letterPattern      = regexp.MustCompile(`\p{L}`)
	specialPattern     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRunPattern    = regexp.MustCompile(`\s+`)
	newlinePattern     = regexp.MustCompile(`\r\n|\r|\n`)
	urlPattern         = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+[^\s<>"'.,;:!?)\]]`)
	emailPattern       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern       = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	hashtagPattern     = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{N}_]+)`)
	mentionPattern     = regexp.MustCompile(`(?:^|\s)(@[\p{L}\p{N}_]+)`)
	wordTokenPattern   = regexp.MustCompile(`[\p{L}\p{N}_']+`)
	sentenceRunPattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// Cleaning

func removePunctuations(_ context.Context, s *Session, _ any) (string, error) {
	s.text = punctuationPattern.ReplaceAllString(s.text, "")
	return "Removed punctuations", nil
}

func removeNumbers(_ context.Context, s *Session, _ any) (string, error) {
	s.text = digitPattern.ReplaceAllString(s.text, "")
	return "Removed numbers", nil
}

func removeAlphabets(_ context.Context, s *Session, _ any) (string, error) {
	s.text = letterPattern.ReplaceAllString(s.text, "")
	return "Removed alphabets", nil
}

func removeSpecialChars(_ context.Context, s *Session, _ any) (string, error) {
	s.text = specialPattern.ReplaceAllString(s.text, "")
	return "Removed special characters", nil
}

func removeExtraSpaces(_ context.Context, s *Session, _ any) (string, error) {
	s.text = strings.TrimSpace(spaceRunPattern.ReplaceAllString(s.text, " "))
	return "Removed extra spaces", nil
}

func removeNewlines(_ context.Context, s *Session, _ any) (string, error) {
	s.text = newlinePattern.ReplaceAllString(s.text, " ")
	return "Removed newlines", nil
}

func removeURLs(_ context.Context, s *Session, _ any) (string, error) {
	s.text = urlPattern.ReplaceAllString(s.text, "")
	return "Removed URLs", nil
}

func removeEmails(_ context.Context, s *Session, _ any) (string, error) {
	s.text = emailPattern.ReplaceAllString(s.text, "")
	return "Removed emails", nil
}

func removeStopwords(ctx context.Context, s *Session, _ any) (string, error) {
	lex := s.analyzer.lexicon
	lex.EnsureLoaded(ctx)

	removed := 0
	s.text = wordTokenPattern.ReplaceAllStringFunc(s.text, func(word string) string {
		if lex.IsStopword(strings.ToLower(word)) {
			removed++
			return ""
		}
		return word
	})
	s.text = strings.TrimSpace(spaceRunPattern.ReplaceAllString(s.text, " "))
	return fmt.Sprintf("Removed %d stopwords", removed), nil
}

func removeBoilerplate(ctx context.Context, s *Session, _ any) (string, error) {
	lex := s.analyzer.lexicon
	lex.EnsureLoaded(ctx)

	f := boilerplateFilter{isStopword: lex.IsStopword, logger: s.logger}
	cleaned, removed := f.Clean(s.text)
	s.text = cleaned
	return fmt.Sprintf("Removed %d boilerplate paragraphs", removed), nil
}

// Extraction

func extractURLs(_ context.Context, s *Session, _ any) (string, error) {
	s.extracted.URLs = nonNil(urlPattern.FindAllString(s.text, -1))
	return fmt.Sprintf("Extracted %d URLs", len(s.extracted.URLs)), nil
}

func extractEmails(_ context.Context, s *Session, _ any) (string, error) {
	s.extracted.Emails = nonNil(emailPattern.FindAllString(s.text, -1))
	return fmt.Sprintf("Extracted %d emails", len(s.extracted.Emails)), nil
}

func extractPhoneNumbers(_ context.Context, s *Session, _ any) (string, error) {
	s.extracted.PhoneNumbers = nonNil(phonePattern.FindAllString(s.text, -1))
	return fmt.Sprintf("Extracted %d phone numbers", len(s.extracted.PhoneNumbers)), nil
}

func extractHashtags(_ context.Context, s *Session, _ any) (string, error) {
	s.extracted.Hashtags = submatches(hashtagPattern, s.text)
	return fmt.Sprintf("Extracted %d hashtags", len(s.extracted.Hashtags)), nil
}

func extractMentions(_ context.Context, s *Session, _ any) (string, error) {
	s.extracted.Mentions = submatches(mentionPattern, s.text)
	return fmt.Sprintf("Extracted %d mentions", len(s.extracted.Mentions)), nil
}

func extractKeywords(ctx context.Context, s *Session, cfg any) (string, error) {
	conf, err := decodeKeywordConfig(cfg)
	if err != nil {
		return "", err
	}
	s.analyzer.lexicon.EnsureLoaded(ctx)

	s.extracted.Keywords = s.analyzer.keywords.Extract(s.text, conf.TopN)
	return fmt.Sprintf("Extracted %d keywords", len(s.extracted.Keywords)), nil
}

// Transform

func toUppercase(_ context.Context, s *Session, _ any) (string, error) {
	s.text = cases.Upper(language.Und).String(s.text)
	return "Converted to uppercase", nil
}

func toLowercase(_ context.Context, s *Session, _ any) (string, error) {
	s.text = cases.Lower(language.Und).String(s.text)
	return "Converted to lowercase", nil
}

func toTitleCase(_ context.Context, s *Session, _ any) (string, error) {
	s.text = cases.Title(language.Und).String(s.text)
	return "Converted to title case", nil
}

// truncate cuts the text to MaxLength runes and appends the suffix, so the
// result can be longer than MaxLength
func truncate(_ context.Context, s *Session, cfg any) (string, error) {
	conf, err := decodeTruncateConfig(cfg)
	if err != nil {
		return "", err
	}

	if utf8.RuneCountInString(s.text) <= conf.MaxLength {
		return fmt.Sprintf("Text within %d characters, not truncated", conf.MaxLength), nil
	}
	runes := []rune(s.text)
	s.text = string(runes[:conf.MaxLength]) + conf.Suffix
	return fmt.Sprintf("Truncated to %d characters", conf.MaxLength), nil
}

// Counting

func countCharacters(_ context.Context, s *Session, _ any) (string, error) {
	s.counts.Characters = utf8.RuneCountInString(s.text)
	return fmt.Sprintf("Counted %d characters", s.counts.Characters), nil
}

func countAlphabets(_ context.Context, s *Session, _ any) (string, error) {
	s.counts.Alphabets = countRunes(s.text, unicode.IsLetter)
	return fmt.Sprintf("Counted %d alphabets", s.counts.Alphabets), nil
}

func countNumbers(_ context.Context, s *Session, _ any) (string, error) {
	s.counts.Numbers = countRunes(s.text, unicode.IsDigit)
	return fmt.Sprintf("Counted %d numbers", s.counts.Numbers), nil
}

func countWords(_ context.Context, s *Session, _ any) (string, error) {
	s.counts.Words = len(strings.Fields(s.text))
	return fmt.Sprintf("Counted %d words", s.counts.Words), nil
}

func countSentences(_ context.Context, s *Session, _ any) (string, error) {
	s.counts.Sentences = SentenceCount(s.text)
	return fmt.Sprintf("Counted %d sentences", s.counts.Sentences), nil
}

// SentenceCount counts runs closed by terminal punctuation, plus one for
// trailing text without it. Blank text has no sentences.
func SentenceCount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	matches := sentenceRunPattern.FindAllStringIndex(text, -1)
	count := len(matches)

	rest := text
	if count > 0 {
		rest = text[matches[count-1][1]:]
	}
	if strings.TrimSpace(rest) != "" {
		count++
	}
	return count
}

// Advanced

func analyzeSentiment(ctx context.Context, s *Session, _ any) (string, error) {
	result, err := s.analyzer.sentiment.Analyze(ctx, s.text)
	if err != nil {
		return "", wrapComponentError(AnalyzeSentiment, err)
	}
	s.sentiment = &result
	return fmt.Sprintf("Analyzed sentiment: %s (%.3f)", result.Classification, result.Score), nil
}

func calculateReadability(_ context.Context, s *Session, _ any) (string, error) {
	result, err := readability.FleschKincaid(s.text)
	if err != nil {
		return "", wrapComponentError(CalculateReadability, err)
	}
	s.readability = &result
	return fmt.Sprintf("Calculated readability: %s", result.Complexity), nil
}

func detectLanguage(_ context.Context, s *Session, _ any) (string, error) {
	result, err := s.analyzer.languages.Detect(s.text, s.langOpts)
	if err != nil {
		return "", wrapComponentError(DetectLanguage, err)
	}
	s.language = &result
	return fmt.Sprintf("Detected language: %s", result.LanguageName), nil
}

func compareTexts(_ context.Context, s *Session, cfg any) (string, error) {
	conf, err := decodeCompareConfig(cfg)
	if err != nil {
		return "", err
	}
	result := textdiff.Compare(s.text, conf.CompareWith)
	s.comparison = &result
	return fmt.Sprintf("Compared texts: %.2f%% similar", result.Similarity), nil
}

// Config decoding. Payloads arrive either as the typed config structs or as
// generic maps decoded from JSON or YAML.

func decodeTruncateConfig(cfg any) (TruncateConfig, error) {
	var conf TruncateConfig
	switch v := cfg.(type) {
	case TruncateConfig:
		conf = v
	case *TruncateConfig:
		if v != nil {
			conf = *v
		}
	case bool:
		return conf, newError(KindConfiguration, Truncate, "maxLength is required")
	default:
		m, err := cast.ToStringMapE(cfg)
		if err != nil {
			return conf, &Error{Kind: KindConfiguration, Op: Truncate, Message: "config must be an object", Err: err}
		}
		raw, ok := m["maxLength"]
		if !ok {
			return conf, newError(KindConfiguration, Truncate, "maxLength is required")
		}
		if conf.MaxLength, err = cast.ToIntE(raw); err != nil {
			return conf, &Error{Kind: KindConfiguration, Op: Truncate, Message: "maxLength must be an integer", Err: err}
		}
		if raw, ok := m["suffix"]; ok {
			if conf.Suffix, err = cast.ToStringE(raw); err != nil {
				return conf, &Error{Kind: KindConfiguration, Op: Truncate, Message: "suffix must be a string", Err: err}
			}
		} else {
			conf.Suffix = DefaultTruncateSuffix
		}
		if conf.MaxLength <= 0 {
			return conf, newError(KindConfiguration, Truncate, "maxLength must be positive, got %d", conf.MaxLength)
		}
		return conf, nil
	}

	if conf.MaxLength <= 0 {
		return conf, newError(KindConfiguration, Truncate, "maxLength must be positive, got %d", conf.MaxLength)
	}
	if conf.Suffix == "" {
		conf.Suffix = DefaultTruncateSuffix
	}
	return conf, nil
}

func decodeKeywordConfig(cfg any) (KeywordConfig, error) {
	conf := KeywordConfig{TopN: keywords.DefaultTopN}
	switch v := cfg.(type) {
	case KeywordConfig:
		if v.TopN > 0 {
			conf = v
		}
		return conf, nil
	case *KeywordConfig:
		if v != nil && v.TopN > 0 {
			conf = *v
		}
		return conf, nil
	case bool:
		return conf, nil
	}

	m, err := cast.ToStringMapE(cfg)
	if err != nil {
		return conf, &Error{Kind: KindConfiguration, Op: ExtractKeywords, Message: "config must be an object", Err: err}
	}
	if raw, ok := m["topN"]; ok {
		n, err := cast.ToIntE(raw)
		if err != nil {
			return conf, &Error{Kind: KindConfiguration, Op: ExtractKeywords, Message: "topN must be an integer", Err: err}
		}
		if n > 0 {
			conf.TopN = n
		}
	}
	return conf, nil
}

func decodeCompareConfig(cfg any) (CompareConfig, error) {
	var conf CompareConfig
	switch v := cfg.(type) {
	case CompareConfig:
		conf = v
	case *CompareConfig:
		if v != nil {
			conf = *v
		}
	case bool:
	default:
		m, err := cast.ToStringMapE(cfg)
		if err != nil {
			return conf, &Error{Kind: KindConfiguration, Op: CompareTexts, Message: "config must be an object", Err: err}
		}
		if raw, ok := m["compareWith"]; ok {
			if conf.CompareWith, err = cast.ToStringE(raw); err != nil {
				return conf, &Error{Kind: KindConfiguration, Op: CompareTexts, Message: "compareWith must be a string", Err: err}
			}
		}
	}

	if conf.CompareWith == "" {
		return conf, newError(KindConfiguration, CompareTexts, "compareWith is required")
	}
	return conf, nil
}

func submatches(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func countRunes(text string, pred func(rune) bool) int {
	n := 0
	for _, r := range text {
		if pred(r) {
			n++
		}
	}
	return n
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
