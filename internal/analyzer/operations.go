package analyzer

import (
	"context"
)

// Handler applies one operation to a session. cfg is the option value that
// enabled the operation: true or a configuration payload. The returned
// string describes what was done and goes into the operation log.
type Handler interface {
	Apply(ctx context.Context, s *Session, cfg any) (string, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, s *Session, cfg any) (string, error)

func (f HandlerFunc) Apply(ctx context.Context, s *Session, cfg any) (string, error) {
	return f(ctx, s, cfg)
}

// Category groups built-in operations
type Category string

const (
	CategoryCleaning   Category = "cleaning"
	CategoryExtraction Category = "extraction"
	CategoryTransform  Category = "transform"
	CategoryCounting   Category = "counting"
	CategoryAdvanced   Category = "advanced"
)

// Operation is a built-in operation. It can be addressed by its symbolic
// Key or by its Value.
type Operation struct {
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Config      string   `json:"config,omitempty"`
	handler     Handler
}

// Built-in operation values
const (
	RemovePunctuations = "removePunctuations"
	RemoveNumbers      = "removeNumbers"
	RemoveAlphabets    = "removeAlphabets"
	RemoveSpecialChars = "removeSpecialChars"
	RemoveExtraSpaces  = "removeExtraSpaces"
	RemoveNewlines     = "removeNewlines"
	RemoveURLs         = "removeUrls"
	RemoveEmails       = "removeEmails"
	RemoveStopwords    = "removeStopwords"
	RemoveBoilerplate  = "removeBoilerplate"

	ExtractURLs         = "extractUrls"
	ExtractEmails       = "extractEmails"
	ExtractPhoneNumbers = "extractPhoneNumbers"
	ExtractHashtags     = "extractHashtags"
	ExtractMentions     = "extractMentions"
	ExtractKeywords     = "extractKeywords"

	ToUppercase = "toUppercase"
	ToLowercase = "toLowercase"
	ToTitleCase = "toTitleCase"
	Truncate    = "truncate"

	CountCharacters = "countCharacters"
	CountAlphabets  = "countAlphabets"
	CountNumbers    = "countNumbers"
	CountWords      = "countWords"
	CountSentences  = "countSentences"

	AnalyzeSentiment     = "analyzeSentiment"
	CalculateReadability = "calculateReadability"
	DetectLanguage       = "detectLanguage"
	CompareTexts         = "compareTexts"
)

var builtins = []Operation{
	{Key: "RemovePunctuations", Value: RemovePunctuations, Category: CategoryCleaning, Description: "Remove punctuation", handler: HandlerFunc(removePunctuations)},
	{Key: "RemoveNumbers", Value: RemoveNumbers, Category: CategoryCleaning, Description: "Remove digits", handler: HandlerFunc(removeNumbers)},
	{Key: "RemoveAlphabets", Value: RemoveAlphabets, Category: CategoryCleaning, Description: "Remove letters", handler: HandlerFunc(removeAlphabets)},
	{Key: "RemoveSpecialChars", Value: RemoveSpecialChars, Category: CategoryCleaning, Description: "Remove characters that are not letters, digits or whitespace", handler: HandlerFunc(removeSpecialChars)},
	{Key: "RemoveExtraSpaces", Value: RemoveExtraSpaces, Category: CategoryCleaning, Description: "Collapse whitespace runs into single spaces", handler: HandlerFunc(removeExtraSpaces)},
	{Key: "RemoveNewlines", Value: RemoveNewlines, Category: CategoryCleaning, Description: "Replace line breaks with spaces", handler: HandlerFunc(removeNewlines)},
	{Key: "RemoveURLs", Value: RemoveURLs, Category: CategoryCleaning, Description: "Remove URLs", handler: HandlerFunc(removeURLs)},
	{Key: "RemoveEmails", Value: RemoveEmails, Category: CategoryCleaning, Description: "Remove email addresses", handler: HandlerFunc(removeEmails)},
	{Key: "RemoveStopwords", Value: RemoveStopwords, Category: CategoryCleaning, Description: "Remove stopwords", handler: HandlerFunc(removeStopwords)},
	{Key: "RemoveBoilerplate", Value: RemoveBoilerplate, Category: CategoryCleaning, Description: "Drop navigation, advertising and credit paragraphs", handler: HandlerFunc(removeBoilerplate)},

	{Key: "ExtractURLs", Value: ExtractURLs, Category: CategoryExtraction, Description: "Collect URLs", handler: HandlerFunc(extractURLs)},
	{Key: "ExtractEmails", Value: ExtractEmails, Category: CategoryExtraction, Description: "Collect email addresses", handler: HandlerFunc(extractEmails)},
	{Key: "ExtractPhoneNumbers", Value: ExtractPhoneNumbers, Category: CategoryExtraction, Description: "Collect phone numbers", handler: HandlerFunc(extractPhoneNumbers)},
	{Key: "ExtractHashtags", Value: ExtractHashtags, Category: CategoryExtraction, Description: "Collect hashtags", handler: HandlerFunc(extractHashtags)},
	{Key: "ExtractMentions", Value: ExtractMentions, Category: CategoryExtraction, Description: "Collect @mentions", handler: HandlerFunc(extractMentions)},
	{Key: "ExtractKeywords", Value: ExtractKeywords, Category: CategoryExtraction, Description: "Rank keywords by TF-IDF", Config: `{"topN": 5}`, handler: HandlerFunc(extractKeywords)},

	{Key: "ToUppercase", Value: ToUppercase, Category: CategoryTransform, Description: "Convert to upper case", handler: HandlerFunc(toUppercase)},
	{Key: "ToLowercase", Value: ToLowercase, Category: CategoryTransform, Description: "Convert to lower case", handler: HandlerFunc(toLowercase)},
	{Key: "ToTitleCase", Value: ToTitleCase, Category: CategoryTransform, Description: "Convert to title case", handler: HandlerFunc(toTitleCase)},
	{Key: "Truncate", Value: Truncate, Category: CategoryTransform, Description: "Cut to a maximum length and append a suffix", Config: `{"maxLength": 100, "suffix": "..."}`, handler: HandlerFunc(truncate)},

	{Key: "CountCharacters", Value: CountCharacters, Category: CategoryCounting, Description: "Count characters", handler: HandlerFunc(countCharacters)},
	{Key: "CountAlphabets", Value: CountAlphabets, Category: CategoryCounting, Description: "Count letters", handler: HandlerFunc(countAlphabets)},
	{Key: "CountNumbers", Value: CountNumbers, Category: CategoryCounting, Description: "Count digits", handler: HandlerFunc(countNumbers)},
	{Key: "CountWords", Value: CountWords, Category: CategoryCounting, Description: "Count words", handler: HandlerFunc(countWords)},
	{Key: "CountSentences", Value: CountSentences, Category: CategoryCounting, Description: "Count sentences", handler: HandlerFunc(countSentences)},

	{Key: "AnalyzeSentiment", Value: AnalyzeSentiment, Category: CategoryAdvanced, Description: "Score sentiment", handler: HandlerFunc(analyzeSentiment)},
	{Key: "CalculateReadability", Value: CalculateReadability, Category: CategoryAdvanced, Description: "Compute readability metrics", handler: HandlerFunc(calculateReadability)},
	{Key: "DetectLanguage", Value: DetectLanguage, Category: CategoryAdvanced, Description: "Identify the language", handler: HandlerFunc(detectLanguage)},
	{Key: "CompareTexts", Value: CompareTexts, Category: CategoryAdvanced, Description: "Compare against another text", Config: `{"compareWith": "..."}`, handler: HandlerFunc(compareTexts)},
}

// builtinIndex maps both keys and values to their operation
var builtinIndex = func() map[string]*Operation {
	idx := make(map[string]*Operation, len(builtins)*2)
	for i := range builtins {
		idx[builtins[i].Key] = &builtins[i]
		idx[builtins[i].Value] = &builtins[i]
	}
	return idx
}()

// LookupOperation finds a built-in by symbolic key or value
func LookupOperation(id string) (Operation, bool) {
	op, ok := builtinIndex[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// IsBuiltin reports whether id names a built-in operation
func IsBuiltin(id string) bool {
	_, ok := builtinIndex[id]
	return ok
}

// Operations returns the built-in catalogue in declaration order
func Operations() []Operation {
	out := make([]Operation, len(builtins))
	copy(out, builtins)
	return out
}
