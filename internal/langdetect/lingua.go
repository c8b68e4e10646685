package langdetect

import (
	"sort"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// LinguaClassifier ranks languages with lingua's n-gram models. Detectors
// are built per language set on first use and cached.
type LinguaClassifier struct {
	byCode map[string]lingua.Language

	mu        sync.Mutex
	detectors map[string]lingua.LanguageDetector
}

// NewLinguaClassifier creates a classifier covering every lingua language
func NewLinguaClassifier() *LinguaClassifier {
	byCode := make(map[string]lingua.Language)
	for _, lang := range lingua.AllLanguages() {
		byCode[strings.ToLower(lang.IsoCode639_3().String())] = lang
		byCode[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}
	return &LinguaClassifier{
		byCode:    byCode,
		detectors: make(map[string]lingua.LanguageDetector),
	}
}

// Classify returns confidence values for the allowed languages, best first.
// Codes may be ISO 639-1 or 639-3; unknown codes are ignored.
func (c *LinguaClassifier) Classify(text string, whitelist, blacklist []string) []Candidate {
	langs := c.languageSet(whitelist, blacklist)
	if len(langs) == 0 {
		return nil
	}

	values := c.detector(langs).ComputeLanguageConfidenceValues(text)

	candidates := make([]Candidate, 0, len(values))
	for _, v := range values {
		if !langs[v.Language()] {
			continue
		}
		candidates = append(candidates, Candidate{
			Code:  strings.ToLower(v.Language().IsoCode639_3().String()),
			Score: v.Value(),
		})
	}
	return candidates
}

func (c *LinguaClassifier) languageSet(whitelist, blacklist []string) map[lingua.Language]bool {
	set := make(map[lingua.Language]bool)

	if len(whitelist) > 0 {
		for _, code := range whitelist {
			if lang, ok := c.byCode[strings.ToLower(code)]; ok {
				set[lang] = true
			}
		}
	} else {
		for _, lang := range lingua.AllLanguages() {
			set[lang] = true
		}
	}

	for _, code := range blacklist {
		if lang, ok := c.byCode[strings.ToLower(code)]; ok {
			delete(set, lang)
		}
	}
	return set
}

// detector returns a cached detector for langs. lingua requires at least two
// languages, so a single-language set is served by the full detector and
// filtered afterwards.
func (c *LinguaClassifier) detector(langs map[lingua.Language]bool) lingua.LanguageDetector {
	list := make([]lingua.Language, 0, len(langs))
	for lang := range langs {
		list = append(list, lang)
	}
	if len(list) < 2 {
		list = lingua.AllLanguages()
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })

	keys := make([]string, len(list))
	for i, lang := range list {
		keys[i] = lang.String()
	}
	key := strings.Join(keys, ",")

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.detectors[key]; ok {
		return d
	}
	d := lingua.NewLanguageDetectorBuilder().FromLanguages(list...).Build()
	c.detectors[key] = d
	return d
}
