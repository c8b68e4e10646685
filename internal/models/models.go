package models

import "time"

// Log entry kinds
const (
	KindBuiltin = "builtin"
	KindCustom  = "custom"
)

// Result is the immutable snapshot returned by a pipeline run
type Result struct {
	Output        string        `json:"output"`
	Operations    OperationLog  `json:"operations"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	ExecutionTime time.Duration `json:"execution_time_ns"`
	Metadata      Metadata      `json:"metadata"`
}

// OperationLog exposes the run log as all / built-in only / custom only views
type OperationLog struct {
	All     []string   `json:"all"`
	Builtin []string   `json:"builtin"`
	Custom  []string   `json:"custom"`
	Entries []LogEntry `json:"entries"`
}

// LogEntry is a single line of the operation log
type LogEntry struct {
	Operation   string `json:"operation"`
	Description string `json:"description"`
	Kind        string `json:"kind"` // builtin, custom
	Failed      bool   `json:"failed,omitempty"`
}

// Metadata contains everything derived from the text during a run
type Metadata struct {
	Counts      Counts                   `json:"counts"`
	Extracted   Extracted                `json:"extracted"`
	Sentiment   *SentimentResult         `json:"sentiment,omitempty"`
	Readability *ReadabilityResult       `json:"readability,omitempty"`
	Language    *LanguageDetectionResult `json:"language,omitempty"`
	Comparison  *TextDiffResult          `json:"comparison,omitempty"`
	Custom      map[string]any           `json:"custom,omitempty"`
}

// Counts holds the counter operations' outputs
type Counts struct {
	Characters int `json:"characters"`
	Alphabets  int `json:"alphabets"`
	Numbers    int `json:"numbers"`
	Words      int `json:"words"`
	Sentences  int `json:"sentences"`
}

// Extracted holds entity lists in match order, duplicates preserved
type Extracted struct {
	URLs         []string `json:"urls"`
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phone_numbers"`
	Hashtags     []string `json:"hashtags"`
	Mentions     []string `json:"mentions"`
	Keywords     []string `json:"keywords"`
}

// Sentiment classifications
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentResult is the ensemble sentiment output
type SentimentResult struct {
	Score             float64          `json:"score"` // nominally -1.0 to 1.0
	PositiveWordCount int              `json:"positive_word_count"`
	NegativeWordCount int              `json:"negative_word_count"`
	TotalWords        int              `json:"total_words"`
	Classification    string           `json:"classification"` // positive, negative, neutral
	Signals           SentimentSignals `json:"signals"`
}

// SentimentSignals records the individual ensemble inputs
type SentimentSignals struct {
	Lexicon        float64 `json:"lexicon"`
	Model          float64 `json:"model"`
	Heuristic      float64 `json:"heuristic"`
	ModelAvailable bool    `json:"model_available"`
}

// ReadabilityResult holds Flesch-Kincaid and SMOG metrics
type ReadabilityResult struct {
	WordCount           int     `json:"word_count"`
	SentenceCount       int     `json:"sentence_count"`
	SyllableCount       int     `json:"syllable_count"`
	PolysyllableCount   int     `json:"polysyllable_count"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	AvgSyllablesPerWord float64 `json:"avg_syllables_per_word"`
	ReadingEase         float64 `json:"reading_ease"` // 0-100
	GradeLevel          float64 `json:"grade_level"`
	SMOGIndex           float64 `json:"smog_index"`
	Complexity          string  `json:"complexity"`
}

// LanguageDetectionResult is the outcome of language identification
type LanguageDetectionResult struct {
	DetectedLanguage     string                `json:"detected_language"` // ISO 639-3, "und" when undetermined
	LanguageName         string                `json:"language_name"`
	Confidence           float64               `json:"confidence"` // 0-100
	Scores               []LanguageScore       `json:"scores"`
	AlternativeLanguages []AlternativeLanguage `json:"alternative_languages"`
}

// LanguageScore is one row of the ranked score table
type LanguageScore struct {
	Code  string  `json:"code"`
	Score float64 `json:"score"` // 0-1
}

// AlternativeLanguage is a runner-up candidate
type AlternativeLanguage struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// TextDiffResult is a bag-of-words comparison of two texts
type TextDiffResult struct {
	Similarity     float64  `json:"similarity"` // 0-100
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	Unchanged      []string `json:"unchanged"`
	AddedCount     int      `json:"added_count"`
	RemovedCount   int      `json:"removed_count"`
	UnchangedCount int      `json:"unchanged_count"`

	// Reserved; the bag comparison does not compute these.
	EditDistance     int      `json:"edit_distance"`
	CommonSubstrings []string `json:"common_substrings"`
}
