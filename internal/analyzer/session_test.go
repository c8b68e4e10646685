package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/lexicon"
	"github.com/zombar/textpipeline/internal/models"
)

type stubClassifier struct {
	calls      atomic.Int32
	candidates []langdetect.Candidate
}

func (c *stubClassifier) Classify(string, []string, []string) []langdetect.Candidate {
	c.calls.Add(1)
	return c.candidates
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *stubClassifier) {
	t.Helper()
	classifier := &stubClassifier{candidates: []langdetect.Candidate{
		{Code: "eng", Score: 0.9},
		{Code: "deu", Score: 0.1},
	}}
	a := New(
		WithLexicon(lexicon.NewStatic(nil, map[string]float64{"common": 0.2})),
		WithClassifier(classifier),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return a, classifier
}

func TestRunWithNoOptions(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("Hello, World!")

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Hello, World!", result.Output)
	assert.Empty(t, result.Operations.All)
	assert.Empty(t, result.Operations.Builtin)
	assert.Empty(t, result.Operations.Custom)
	assert.Empty(t, result.Metadata.Custom)
	assert.Nil(t, result.Metadata.Sentiment)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestRunFollowsOptionOrder(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	s := a.NewSession("abc 123", WithOptions(models.NewOptions(
		RemoveNumbers, true,
		"ToUppercase", true,
		CountCharacters, true,
	)))
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ABC ", result.Output)
	assert.Equal(t, 4, result.Metadata.Counts.Characters)
	assert.Equal(t, []string{"Removed numbers", "Converted to uppercase", "Counted 4 characters"}, result.Operations.All)
	assert.Equal(t, result.Operations.All, result.Operations.Builtin)
}

func TestRunSkipsDisabledAndUnknown(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	s := a.NewSession("abc", WithOptions(models.NewOptions(
		"notAnOperation", true,
		ToLowercase, false,
		ToUppercase, true,
		RemoveNumbers, nil,
	)))
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ABC", result.Output)
	require.Len(t, result.Operations.Entries, 1)
	assert.Equal(t, ToUppercase, result.Operations.Entries[0].Operation)
	assert.Equal(t, models.KindBuiltin, result.Operations.Entries[0].Kind)
}

func TestRunTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		cfg      any
		expected string
	}{
		{"map config", "abcdefgh", map[string]any{"maxLength": 5}, "abcde..."},
		{"json numbers", "abcdefgh", map[string]any{"maxLength": float64(3), "suffix": "!"}, "abc!"},
		{"typed config", "abcdefgh", TruncateConfig{MaxLength: 4, Suffix: "~"}, "abcd~"},
		{"typed default suffix", "abcdefgh", &TruncateConfig{MaxLength: 2}, "ab..."},
		{"explicit empty suffix", "abcdefgh", map[string]any{"maxLength": 2, "suffix": ""}, "ab"},
		{"within limit", "abc", map[string]any{"maxLength": 5}, "abc"},
		{"runes not bytes", "héllo wörld", map[string]any{"maxLength": 5}, "héllo..."},
	}

	a, _ := newTestAnalyzer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := a.NewSession(tt.text, WithOptions(models.NewOptions(Truncate, tt.cfg)))
			result, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Output)
		})
	}
}

func TestRunTruncateConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  any
	}{
		{"enabled without config", true},
		{"missing maxLength", map[string]any{"suffix": "..."}},
		{"zero maxLength", map[string]any{"maxLength": 0}},
		{"negative maxLength", TruncateConfig{MaxLength: -1}},
		{"non numeric maxLength", map[string]any{"maxLength": "lots"}},
		{"not an object", 42},
	}

	a, _ := newTestAnalyzer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := a.NewSession("abcdefgh", WithOptions(models.NewOptions(Truncate, tt.cfg)))
			_, err := s.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), err.Error())
			assert.Equal(t, "abcdefgh", s.Text())
		})
	}
}

func TestRunErrorKeepsEarlierMutations(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	s := a.NewSession("abcdefgh", WithOptions(models.NewOptions(
		ToUppercase, true,
		Truncate, true,
		ToLowercase, true,
	)))
	result, err := s.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, "ABCDEFGH", s.Text())

	log := s.Log()
	require.Len(t, log, 2)
	assert.False(t, log[0].Failed)
	assert.True(t, log[1].Failed)
	assert.True(t, strings.HasPrefix(log[1].Description, "Failed: truncate: "), log[1].Description)
}

func TestSentenceCount(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"This is one. This is two.", 2},
		{"", 0},
		{"   \n\t", 0},
		{"No terminal punctuation", 1},
		{"One. Two! Three? And a tail", 4},
		{"Wait... what?!", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SentenceCount(tt.text), tt.text)
	}
}

func TestRegisterCustomOperation(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc")

	upper := CustomOperation{
		ID:        "x",
		Name:      "Shout",
		Transform: func(text string) (string, error) { return strings.ToUpper(text), nil },
		Enabled:   true,
	}
	require.NoError(t, s.RegisterCustomOperation(upper))

	err := s.RegisterCustomOperation(upper)
	assert.True(t, errors.Is(err, ErrDuplicateOperation))

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Output)
	assert.Equal(t, []string{"Shout"}, result.Operations.Custom)
	assert.Empty(t, result.Operations.Builtin)
	assert.Equal(t, models.KindCustom, result.Operations.Entries[0].Kind)
}

func TestRegisterCustomOperationValidation(t *testing.T) {
	identity := func(text string) (string, error) { return text, nil }

	tests := []struct {
		name string
		op   CustomOperation
		kind error
	}{
		{"missing id", CustomOperation{Name: "n", Transform: identity}, ErrInvalidArgument},
		{"missing name", CustomOperation{ID: "n", Transform: identity}, ErrInvalidArgument},
		{"missing transform", CustomOperation{ID: "n", Name: "n"}, ErrInvalidArgument},
		{"builtin value", CustomOperation{ID: Truncate, Name: "n", Transform: identity}, ErrDuplicateOperation},
		{"builtin key", CustomOperation{ID: "Truncate", Name: "n", Transform: identity}, ErrDuplicateOperation},
	}

	a, _ := newTestAnalyzer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.NewSession("abc").RegisterCustomOperation(tt.op)
			assert.True(t, errors.Is(err, tt.kind), "%v", err)
		})
	}
}

func TestRegisterCustomOperationKeepsEnabledOption(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc", WithOptions(models.NewOptions("x", true)))

	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "x",
		Name:      "Reverse",
		Transform: func(text string) (string, error) { return "cba", nil },
	}))

	v, ok := s.Options().Get("x")
	require.True(t, ok)
	assert.Equal(t, true, v)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cba", result.Output)
}

func TestCustomOperationMetadata(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc")

	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "meta",
		Name:      "Meta",
		Enabled:   true,
		Transform: func(text string) (string, error) { return text + "!", nil },
		Metadata:  map[string]any{"source": "static", "version": 1},
		MetadataExtractor: func(text string) map[string]any {
			return map[string]any{"length": len(text), "version": 2}
		},
	}))
	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "plain",
		Name:      "Plain",
		Enabled:   true,
		Transform: func(text string) (string, error) { return text, nil },
	}))

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "abc!", result.Output)
	assert.Equal(t, map[string]any{"source": "static", "version": 2, "length": 3}, result.Metadata.Custom["meta"])
	assert.NotContains(t, result.Metadata.Custom, "plain")
}

func TestCustomOperationError(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc")
	boom := errors.New("boom")

	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "fail",
		Name:      "Fails",
		Enabled:   true,
		Transform: func(string) (string, error) { return "", boom },
		Metadata:  map[string]any{"k": "v"},
	}))

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "abc", s.Text())

	log := s.Log()
	require.Len(t, log, 1)
	assert.Equal(t, "Failed: Fails: boom", log[0].Description)
	assert.Equal(t, models.KindCustom, log[0].Kind)
}

func TestToggle(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc")

	err := s.Toggle("doesNotExist", true)
	assert.True(t, errors.Is(err, ErrUnknownOperation))

	require.NoError(t, s.Toggle("ToUppercase", true))
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Output)

	require.NoError(t, s.Toggle("ToUppercase", false))
	s.Reset()
	result, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Output)
}

func TestToggleKeepsConfigPayload(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	cfg := map[string]any{"maxLength": 2}
	s := a.NewSession("abcdef", WithOptions(models.NewOptions(Truncate, cfg)))

	require.NoError(t, s.Toggle(Truncate, true))
	v, _ := s.Options().Get(Truncate)
	assert.Equal(t, cfg, v)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ab...", result.Output)

	require.NoError(t, s.Toggle(Truncate, false))
	v, _ = s.Options().Get(Truncate)
	assert.Equal(t, false, v)

	s.Reset()
	result, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", result.Output)
	assert.Empty(t, result.Operations.All)
}

func TestEnableAllDisableAll(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc")
	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "custom",
		Name:      "Custom",
		Transform: func(text string) (string, error) { return text, nil },
	}))

	s.EnableAll()
	opts := s.Options()
	for _, op := range Operations() {
		v, _ := opts.Get(op.Key)
		assert.Equal(t, true, v, op.Key)
		v, _ = opts.Get(op.Value)
		assert.Equal(t, true, v, op.Value)
	}
	v, _ := opts.Get("custom")
	assert.Equal(t, true, v)

	s.DisableAll()
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Output)
	assert.Empty(t, result.Operations.All)
}

func TestEnableAllRunsEachOperationOnce(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("Hello there. 42 apples.")

	s.EnableAll()
	var counting int
	for _, op := range Operations() {
		if op.Category == CategoryCounting {
			counting++
			continue
		}
		require.NoError(t, s.Toggle(op.Key, false))
		require.NoError(t, s.Toggle(op.Value, false))
	}

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Operations.Entries, counting)
	assert.Len(t, result.Operations.Builtin, counting)
}

func TestKeyAndValueRunOnce(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc", WithOptions(models.NewOptions(
		"ToUppercase", true,
		ToUppercase, true,
		"CountCharacters", true,
	)))

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Output)
	require.Len(t, result.Operations.Entries, 2)
	assert.Equal(t, "ToUppercase", result.Operations.Entries[0].Operation)
	assert.Equal(t, "CountCharacters", result.Operations.Entries[1].Operation)
}

func TestConfigureMerges(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("abc", WithOptions(models.NewOptions(ToUppercase, true, CountWords, true)))

	s.Configure(models.NewOptions(ToUppercase, false, CountCharacters, true))

	opts := s.Options()
	assert.Equal(t, []string{ToUppercase, CountWords, CountCharacters}, opts.Keys())
	v, _ := opts.Get(ToUppercase)
	assert.Equal(t, false, v)
}

func TestReset(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("Email me at a@example.com", WithOptions(models.NewOptions(
		ExtractEmails, true,
		CountWords, true,
		CalculateReadability, true,
		ToUppercase, true,
	)))
	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "tag",
		Name:      "Tag",
		Enabled:   true,
		Transform: func(text string) (string, error) { return text, nil },
		Metadata:  map[string]any{"tagged": true},
	}))

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, first.Metadata.Extracted.Emails)

	s.Reset()
	s.Reset()
	assert.Equal(t, "Email me at a@example.com", s.Text())
	assert.Empty(t, s.Log())

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.Operations, second.Operations)
	assert.Equal(t, first.Metadata, second.Metadata)
	assert.Equal(t, map[string]any{"tagged": true}, second.Metadata.Custom["tag"])

	s.ResetText("new text")
	assert.Equal(t, "new text", s.Text())
	assert.Empty(t, s.Log())

	third, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, third.Metadata.Extracted.Emails)
	assert.Equal(t, "NEW TEXT", third.Output)
	assert.Equal(t, []string{"Tag"}, third.Operations.Custom)
}

func TestSnapshotIsIsolated(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	s := a.NewSession("#one #two", WithOptions(models.NewOptions(ExtractHashtags, true)))
	require.NoError(t, s.RegisterCustomOperation(CustomOperation{
		ID:        "m",
		Name:      "M",
		Enabled:   true,
		Transform: func(text string) (string, error) { return text, nil },
		Metadata:  map[string]any{"k": "v"},
	}))

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	result.Metadata.Extracted.Hashtags[0] = "#changed"
	result.Metadata.Custom["m"].(map[string]any)["k"] = "changed"
	result.Operations.All[0] = "changed"

	again, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"#one", "#two"}, again.Metadata.Extracted.Hashtags)
	assert.Equal(t, map[string]any{"k": "v"}, again.Metadata.Custom["m"])
}

func TestDetectLanguageShortText(t *testing.T) {
	a, classifier := newTestAnalyzer(t)

	result, err := a.NewSession("Hi there", WithOptions(models.NewOptions(DetectLanguage, true))).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Metadata.Language)
	assert.Equal(t, "und", result.Metadata.Language.DetectedLanguage)
	assert.Equal(t, "Undetermined", result.Metadata.Language.LanguageName)
	assert.Zero(t, result.Metadata.Language.Confidence)
	assert.Zero(t, classifier.calls.Load())
}

func TestDetectLanguage(t *testing.T) {
	a, classifier := newTestAnalyzer(t)

	s := a.NewSession("The quick brown fox jumps over the lazy dog",
		WithOptions(models.NewOptions(DetectLanguage, true)),
		WithLanguageOptions(langdetect.Options{MinLength: 5}),
	)
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "eng", result.Metadata.Language.DetectedLanguage)
	assert.Equal(t, "English", result.Metadata.Language.LanguageName)
	assert.InDelta(t, 90.0, result.Metadata.Language.Confidence, 0.001)
	assert.EqualValues(t, 1, classifier.calls.Load())
}

func TestAdvancedInvalidInput(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	for _, op := range []string{AnalyzeSentiment, CalculateReadability, DetectLanguage} {
		t.Run(op, func(t *testing.T) {
			_, err := a.NewSession("", WithOptions(models.NewOptions(op, true))).Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), err.Error())
		})
	}
}

func TestRunBatch(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	texts := []string{"first text", "   ", "third text"}
	opts := models.NewOptions(ToUppercase, true, AnalyzeSentiment, true)

	items := a.RunBatch(context.Background(), texts, opts, 2)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}
	require.NotNil(t, items[0].Result)
	assert.Equal(t, "FIRST TEXT", items[0].Result.Output)
	assert.Nil(t, items[1].Result)
	assert.Equal(t, KindInvalidInput, items[1].Kind)
	require.NotNil(t, items[2].Result)
	assert.Equal(t, "THIRD TEXT", items[2].Result.Output)

	// the shared options are not mutated by the sessions
	assert.Equal(t, []string{ToUppercase, AnalyzeSentiment}, opts.Keys())
}

func TestRunBatchCancelled(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := a.RunBatch(ctx, []string{"a", "b"}, models.NewOptions(ToUppercase, true), 0)
	for _, item := range items {
		assert.Nil(t, item.Result)
		assert.NotEmpty(t, item.Error)
	}
}

func TestOperationsCatalogue(t *testing.T) {
	ops := Operations()
	assert.Len(t, ops, 29)

	seen := map[string]bool{}
	for _, op := range ops {
		assert.False(t, seen[op.Key], op.Key)
		assert.False(t, seen[op.Value], op.Value)
		seen[op.Key], seen[op.Value] = true, true

		found, ok := LookupOperation(op.Key)
		require.True(t, ok)
		assert.Equal(t, op.Value, found.Value)
		assert.True(t, IsBuiltin(op.Value))
	}
	assert.False(t, IsBuiltin("custom"))
}
