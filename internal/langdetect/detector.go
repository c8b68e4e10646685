// Package langdetect identifies the language of a text through a pluggable
// classifier and resolves language codes to display names.
package langdetect

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/zombar/textpipeline/internal/models"
)

// ErrInvalidInput is returned for blank text
var ErrInvalidInput = errors.New("langdetect: text must be a non-empty string")

const (
	// Undetermined is the ISO 639-3 code for an undetermined language
	Undetermined = "und"

	// UndeterminedName is the display name of Undetermined
	UndeterminedName = "Undetermined"

	// DefaultMinLength is the shortest text, in runes, worth classifying
	DefaultMinLength = 10

	maxScores       = 5
	maxAlternatives = 3
)

// Candidate is one ranked classifier result
type Candidate struct {
	Code  string  // ISO 639-3
	Score float64 // 0-1
}

// Classifier ranks candidate languages for a text, best first. Whitelist and
// blacklist hold ISO 639-3 codes and may be empty.
type Classifier interface {
	Classify(text string, whitelist, blacklist []string) []Candidate
}

// Options restricts detection. List codes may be ISO 639-1 or 639-3.
type Options struct {
	Whitelist []string `json:"whitelist,omitempty" yaml:"whitelist"`
	Blacklist []string `json:"blacklist,omitempty" yaml:"blacklist"`
	MinLength int      `json:"min_length,omitempty" yaml:"min_length"`
}

// Detector applies length and list policies around a Classifier
type Detector struct {
	classifier Classifier
}

// NewDetector creates a Detector. A nil classifier uses lingua.
func NewDetector(c Classifier) *Detector {
	if c == nil {
		c = NewLinguaClassifier()
	}
	return &Detector{classifier: c}
}

// Detect identifies the language of text. Text shorter than the minimum
// length yields the undetermined result without consulting the classifier.
func (d *Detector) Detect(text string, opts Options) (models.LanguageDetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.LanguageDetectionResult{}, ErrInvalidInput
	}

	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if utf8.RuneCountInString(text) < minLength {
		return UndeterminedResult(), nil
	}

	whitelist := normalizeCodes(opts.Whitelist)
	blacklist := normalizeCodes(opts.Blacklist)

	candidates := filter(d.classifier.Classify(text, whitelist, blacklist), whitelist, blacklist)
	if len(candidates) == 0 || candidates[0].Code == Undetermined || candidates[0].Score <= 0 {
		return UndeterminedResult(), nil
	}

	top := candidates[0]
	result := models.LanguageDetectionResult{
		DetectedLanguage:     top.Code,
		LanguageName:         Name(top.Code),
		Confidence:           round(top.Score*100, 2),
		Scores:               []models.LanguageScore{},
		AlternativeLanguages: []models.AlternativeLanguage{},
	}

	for i, c := range candidates {
		if i >= maxScores {
			break
		}
		result.Scores = append(result.Scores, models.LanguageScore{Code: c.Code, Score: round(c.Score, 4)})
	}

	for _, c := range candidates[1:] {
		if len(result.AlternativeLanguages) == maxAlternatives {
			break
		}
		if c.Code == Undetermined {
			continue
		}
		result.AlternativeLanguages = append(result.AlternativeLanguages, models.AlternativeLanguage{
			Code:       c.Code,
			Name:       Name(c.Code),
			Confidence: round(c.Score*100, 2),
		})
	}

	return result, nil
}

// UndeterminedResult is the sentinel for text that could not be classified
func UndeterminedResult() models.LanguageDetectionResult {
	return models.LanguageDetectionResult{
		DetectedLanguage:     Undetermined,
		LanguageName:         UndeterminedName,
		Scores:               []models.LanguageScore{},
		AlternativeLanguages: []models.AlternativeLanguage{},
	}
}

// commonNames covers the most frequent languages
var commonNames = map[string]string{
	"eng": "English",
	"spa": "Spanish",
	"fra": "French",
	"deu": "German",
	"ita": "Italian",
	"por": "Portuguese",
	"rus": "Russian",
	"cmn": "Chinese",
	"zho": "Chinese",
	"jpn": "Japanese",
	"kor": "Korean",
	"ara": "Arabic",
	"hin": "Hindi",
	"nld": "Dutch",
	"swe": "Swedish",
	"pol": "Polish",
	"tur": "Turkish",
	"vie": "Vietnamese",
	"ukr": "Ukrainian",
	"ell": "Greek",
	"heb": "Hebrew",
}

// Name resolves an ISO 639 code to an English display name, falling back to
// the upper-cased code
func Name(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == Undetermined {
		return UndeterminedName
	}
	if name, ok := commonNames[code]; ok {
		return name
	}
	if tag, err := language.Parse(code); err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			if name := display.English.Languages().Name(base); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(code)
}

func filter(candidates []Candidate, whitelist, blacklist []string) []Candidate {
	if len(whitelist) == 0 && len(blacklist) == 0 {
		return candidates
	}

	allowed := toSet(whitelist)
	denied := toSet(blacklist)

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(allowed) > 0 && !allowed[c.Code] {
			continue
		}
		if denied[c.Code] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// normalizeCodes lower-cases codes and maps ISO 639-1 codes to their 639-3
// form, which is what classifiers report
func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToLower(strings.TrimSpace(c)); c == "" {
			continue
		}
		if base, err := language.ParseBase(c); err == nil {
			if iso3 := base.ISO3(); iso3 != "" {
				c = iso3
			}
		}
		out = append(out, c)
	}
	return out
}

func toSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
