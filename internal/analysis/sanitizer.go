package analysis

import "math"

// EmotionScores breaks sentiment into per-emotion intensities in [0,1].
type EmotionScores struct {
	Joy     float64 `json:"joy"`
	Sadness float64 `json:"sadness"`
	Anger   float64 `json:"anger"`
	Fear    float64 `json:"fear"`
	Neutral float64 `json:"neutral"`
}

// Scores is the numeric portion of an analysis result.
type Scores struct {
	Sentiment           float64       `json:"sentiment"`
	Emotion             EmotionScores `json:"emotion"`
	RelevanceToQuestion float64       `json:"relevance_to_question"`
	RelevanceToCategory float64       `json:"relevance_to_category"`
	Toxicity            float64       `json:"toxicity"`
	Length              float64       `json:"length"`
}

// Sanitize clamps every score to its declared range and rounds to two
// decimals. Model output is advisory; stored values must honor the schema.
func Sanitize(s Scores) Scores {
	return Scores{
		Sentiment: round2(clamp(s.Sentiment, -1, 1)),
		Emotion: EmotionScores{
			Joy:     round2(clamp(s.Emotion.Joy, 0, 1)),
			Sadness: round2(clamp(s.Emotion.Sadness, 0, 1)),
			Anger:   round2(clamp(s.Emotion.Anger, 0, 1)),
			Fear:    round2(clamp(s.Emotion.Fear, 0, 1)),
			Neutral: round2(clamp(s.Emotion.Neutral, 0, 1)),
		},
		RelevanceToQuestion: round2(clamp(s.RelevanceToQuestion, 0, 1)),
		RelevanceToCategory: round2(clamp(s.RelevanceToCategory, 0, 1)),
		Toxicity:            round2(clamp(s.Toxicity, 0, 1)),
		Length:              round2(math.Max(s.Length, 0)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
