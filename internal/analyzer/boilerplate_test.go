package analyzer

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zombar/textpipeline/internal/lexicon"
)

func newTestFilter() boilerplateFilter {
	return boilerplateFilter{
		isStopword: lexicon.NewStatic(lexicon.FallbackStopwords(), nil).IsStopword,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSplitIntoParagraphs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"double newline separation", "Para 1\n\nPara 2\n\nPara 3", 3},
		{"empty paragraphs filtered", "Para 1\n\n\n\nPara 2", 2},
		{"long paragraph without newlines", strings.Repeat("word ", 300), 1},
		{"long paragraph split on newlines", strings.Repeat("word ", 150) + "\n" + strings.Repeat("more ", 150), 2},
		{"single newline kept together", "Para 1\n\nPara 2\nPara 3", 2},
		{"windows line endings", "Para 1\r\n\r\nPara 2", 2},
		{"blank", "  \n\n  ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitIntoParagraphs(tt.input), tt.expected)
		})
	}
}

func TestScoreParagraphImageMarkers(t *testing.T) {
	f := newTestFilter()

	tests := []struct {
		name      string
		paragraph string
		penalize  bool
	}{
		{"photo credit", "Photo by John Smith for Getty Images", true},
		{"image source", "Image source: Reuters", true},
		{"copyright notice", "© 2024 Associated Press", true},
		{"photographer credit", "Photographer: Jane Doe", true},
		{"normal content", "This is a normal article paragraph with actual content about technology.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.penalize, f.scoreParagraph(tt.paragraph).HasImageMarkers)
		})
	}
}

func TestScoreParagraphBoilerplate(t *testing.T) {
	f := newTestFilter()

	tests := []struct {
		name      string
		paragraph string
		expected  bool
	}{
		{"click here", "Click here to read more about this topic", true},
		{"newsletter", "Subscribe to our newsletter for weekly updates", true},
		{"share prompt", "Share this article on Facebook and Twitter", true},
		{"related", "Related articles you may also like", true},
		{"buy now", "Buy now and save 50% on your first order", true},
		{"short nav", "Back to top", true},
		{"content", "The study demonstrates that climate change is accelerating faster than previously thought.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.scoreParagraph(tt.paragraph).IsBoilerplate)
		})
	}
}

func TestScoreParagraphLinkDensity(t *testing.T) {
	f := newTestFilter()

	links := f.scoreParagraph("Home » News » World » https://example.com/a https://example.com/b")
	assert.Greater(t, links.LinkDensity, 0.1)
	assert.Contains(t, links.Reasons, "high_link_density")

	prose := f.scoreParagraph("The council met on Tuesday to discuss the budget for the coming year and the plans for the new library.")
	assert.Zero(t, prose.LinkDensity)
}

func TestScoreParagraphBounds(t *testing.T) {
	f := newTestFilter()

	inputs := []string{
		"",
		"short",
		"CLICK HERE!!! SUBSCRIBE NOW!!! BUY NOW!!! https://spam.example www.spam.example",
		strings.Repeat("The researchers in Geneva published their findings about the climate in the journal. ", 5),
	}
	for _, in := range inputs {
		s := f.scoreParagraph(in)
		assert.GreaterOrEqual(t, s.Score, 0.0, in)
		assert.LessOrEqual(t, s.Score, 1.0, in)
	}

	assert.Contains(t, f.scoreParagraph("short").Reasons, "too_short")
}

func TestBoilerplateClean(t *testing.T) {
	f := newTestFilter()

	article := strings.Join([]string{
		"Skip to content",
		"The city council approved a new budget on Tuesday after months of debate about the cost of public transport and the state of the roads in the northern districts.",
		"Subscribe to our newsletter for the latest updates.",
		"Officials said the plan would be reviewed again in the spring, when the first figures from the new bus routes are expected to be published by the transport office.",
		"Photo by Jane Doe for Getty Images",
	}, "\n\n")

	cleaned, removed := f.Clean(article)

	assert.Equal(t, 3, removed)
	assert.Contains(t, cleaned, "The city council approved")
	assert.Contains(t, cleaned, "Officials said")
	assert.NotContains(t, cleaned, "newsletter")
	assert.NotContains(t, cleaned, "Getty")
	assert.NotContains(t, cleaned, "Skip to content")
	assert.Equal(t, 1, strings.Count(cleaned, "\n\n"))
}

func TestBoilerplateCleanSingleParagraph(t *testing.T) {
	f := newTestFilter()

	cleaned, removed := f.Clean("Hello world")
	assert.Equal(t, "Hello world", cleaned)
	assert.Zero(t, removed)

	cleaned, removed = f.Clean("Click here to subscribe")
	assert.Empty(t, cleaned)
	assert.Equal(t, 1, removed)
}

func TestBoilerplateCleanEmpty(t *testing.T) {
	cleaned, removed := newTestFilter().Clean("   ")
	assert.Equal(t, "   ", cleaned)
	assert.Zero(t, removed)
}

func TestCalculateDynamicThreshold(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		expected float64
	}{
		{"empty", nil, 0.5},
		{"median in range", []float64{0.2, 0.45, 0.9}, 0.45},
		{"clamped low", []float64{0.0, 0.1, 0.2}, 0.3},
		{"clamped high", []float64{0.7, 0.8, 0.9}, 0.6},
		{"unsorted input", []float64{0.9, 0.4, 0.1}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := make([]ParagraphScore, len(tt.scores))
			for i, s := range tt.scores {
				scores[i] = ParagraphScore{Score: s}
			}
			assert.InDelta(t, tt.expected, calculateDynamicThreshold(scores), 1e-9)
		})
	}
}
