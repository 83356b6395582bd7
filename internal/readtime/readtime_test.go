package readtime

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-spacetraveling/internal/model"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palavra ", n))
}

func block(n int) model.ContentBlock {
	return model.ContentBlock{Heading: "título com várias palavras", Body: model.RichText{{Type: "paragraph", Text: words(n)}}}
}

func TestWords(t *testing.T) {
	assert.Equal(t, 0, Words(""))
	assert.Equal(t, 0, Words(" \t\n "))
	assert.Equal(t, 3, Words("  um   dois\ttrês\n"))
}

func TestEstimate_Empty(t *testing.T) {
	assert.Equal(t, 0, Estimate(nil, DefaultWordsPerMinute))
	assert.Equal(t, 0, Estimate([]model.ContentBlock{{Heading: "só título"}}, DefaultWordsPerMinute))
}

func TestEstimate_Ceiling(t *testing.T) {
	assert.Equal(t, 2, Estimate([]model.ContentBlock{block(400)}, 200))
	assert.Equal(t, 3, Estimate([]model.ContentBlock{block(401)}, 200))
	assert.Equal(t, 1, Estimate([]model.ContentBlock{block(1)}, 200))
}

func TestEstimate_DistributionInvariant(t *testing.T) {
	one := Estimate([]model.ContentBlock{block(400)}, 200)
	four := Estimate([]model.ContentBlock{block(100), block(100), block(100), block(100)}, 200)
	assert.Equal(t, one, four)
}

func TestEstimate_MultiSegmentBody(t *testing.T) {
	b := model.ContentBlock{Body: model.RichText{
		{Type: "paragraph", Text: words(150)},
		{Type: "image", URL: "https://img"},
		{Type: "list-item", Text: words(60)},
	}}
	assert.Equal(t, 2, Estimate([]model.ContentBlock{b}, 200))
}

func TestEstimateText_DefaultRate(t *testing.T) {
	assert.Equal(t, 2, EstimateText([]string{words(201)}, 0))
	assert.Equal(t, 5, EstimateText([]string{words(10), "", words(40)}, 10))
}

func TestEstimateText_HugeWordsPerMinute(t *testing.T) {
	assert.Equal(t, 1, EstimateText([]string{"a b"}, math.MaxInt))
	assert.Equal(t, 0, EstimateText([]string{""}, math.MaxInt))
}
