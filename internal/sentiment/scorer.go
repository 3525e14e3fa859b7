package sentiment

import (
	"strings"
	"unicode"

	"sentimentpipe/backend-go/internal/models"
)

const negationWindow = 3

// Scorer is a lexicon scorer. It holds no state, so one instance can be shared
// across goroutines.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the polarity of text. Empty or lexicon-free text is neutral
// with zero confidence.
func (s *Scorer) Score(text string) models.SentimentScore {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return models.SentimentScore{}
	}

	var pSum, sSum float64
	matched := 0
	for i, tok := range tokens {
		e, ok := lexicon[tok]
		if !ok {
			continue
		}
		p, subj := e.polarity, e.subjectivity
		if i > 0 {
			if m, ok := intensifiers[tokens[i-1]]; ok {
				p *= m
				subj *= m
			}
		}
		if negated(tokens, i) {
			p *= -0.5
		}
		pSum += clamp(p, -1, 1)
		sSum += clamp(subj, 0, 1)
		matched++
	}
	if matched == 0 {
		return models.SentimentScore{}
	}

	n := float64(matched)
	return models.SentimentScore{
		Polarity:     clamp(pSum/n, -1, 1),
		Subjectivity: clamp(sSum/n, 0, 1),
		Confidence:   1 - 1/(1+n),
	}
}

// ScoreRecord scores the concatenation of the given text fields of r.
func (s *Scorer) ScoreRecord(r models.RawRecord, fields []string) models.SentimentScore {
	out := s.Score(RecordText(r, fields))
	out.RecordID = r.ID
	return out
}

// ScoreRecords returns one score per record, in input order. Records are not modified.
func (s *Scorer) ScoreRecords(records []models.RawRecord, fields []string) []models.SentimentScore {
	out := make([]models.SentimentScore, len(records))
	for i, r := range records {
		out[i] = s.ScoreRecord(r, fields)
	}
	return out
}

// HasText reports whether r carries any non-empty text in fields.
func HasText(r models.RawRecord, fields []string) bool {
	for _, f := range fields {
		if _, ok := r.TextValue(f); ok {
			return true
		}
	}
	return false
}

func RecordText(r models.RawRecord, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := r.TextValue(f); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
		if negations[tokens[j]] || strings.HasSuffix(tokens[j], "n't") {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
