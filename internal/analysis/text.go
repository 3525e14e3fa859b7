package analysis

import (
	"sort"
	"time"

	"sentimentpipe/backend-go/internal/models"
	"sentimentpipe/backend-go/internal/sentiment"
)

// TextStrategy covers text sources (posts, headlines). With topics enabled,
// unlabelled records are categorised by topic keywords.
type TextStrategy struct {
	scorer *sentiment.Scorer
	topics bool
}

func (t *TextStrategy) Analyze(in Input) models.SourceFeatureSummary {
	s := newSummary(in.Source, in.Records)
	cfg := in.Config
	useTopics := t.topics && cfg.Analyses.Topics

	texts := make([]string, 0, len(in.Records))
	for _, r := range in.Records {
		if sentiment.HasText(r, cfg.TextFields) {
			texts = append(texts, sentiment.RecordText(r, cfg.TextFields))
		}
	}

	if cfg.Analyses.Sentiment {
		all := []float64{}
		byCat := map[string][]float64{}
		for _, r := range in.Records {
			// Records without text score neutral with zero confidence and
			// are left out of the aggregates.
			if !sentiment.HasText(r, cfg.TextFields) {
				continue
			}
			sc := t.scorer.ScoreRecord(r, cfg.TextFields)
			all = append(all, sc.Polarity)
			cat := t.category(r, cfg.TextFields, useTopics)
			byCat[cat] = append(byCat[cat], sc.Polarity)
		}
		s.Sentiment = aggregate(all)
		for cat, xs := range byCat {
			s.Categories[cat] = aggregate(xs)
		}
		if len(all) > 0 {
			pos := 0
			for _, p := range all {
				if p > 0 {
					pos++
				}
			}
			s.Stats["positive_ratio"] = float64(pos) / float64(len(all))
		}
	}

	if cfg.Analyses.Entities {
		s.Entities = extractEntities(texts)
	}
	if useTopics {
		s.Topics = map[string]int{}
		for _, txt := range texts {
			s.Topics[classifyTopic(txt)]++
		}
	}
	if cfg.Analyses.Statistics {
		statistics(&s, in.Records, cfg.NumericFields)
	}
	if cfg.Analyses.Trends {
		textTrends(&s, in.Records)
	}
	return s
}

func (t *TextStrategy) category(r models.RawRecord, fields []string, useTopics bool) string {
	if r.Category != "" || !useTopics {
		return categoryOf(r)
	}
	return classifyTopic(sentiment.RecordText(r, fields))
}

// textTrends adds mention volume, engagement and day-over-day volume change.
func textTrends(s *models.SourceFeatureSummary, records []models.RawRecord) {
	s.Stats["volume"] = float64(len(records))

	engagement := []float64{}
	for _, r := range records {
		score, okS := r.NumericValue("score")
		comments, okC := r.NumericValue("num_comments")
		if okS || okC {
			engagement = append(engagement, score+comments)
		}
	}
	if len(engagement) > 0 {
		s.Stats["engagement_mean"] = mean(engagement)
	}

	perDay := map[string]int{}
	for _, r := range records {
		if !r.Timestamp.IsZero() {
			perDay[r.Timestamp.UTC().Format(time.DateOnly)]++
		}
	}
	if len(perDay) == 0 {
		return
	}
	s.Stats["records_per_day"] = float64(len(records)) / float64(len(perDay))

	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)
	if len(days) >= 2 {
		last, prev := perDay[days[len(days)-1]], perDay[days[len(days)-2]]
		s.Stats["volume_change"] = float64(last-prev) / float64(prev)
	}
}
