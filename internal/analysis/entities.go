package analysis

import (
	"regexp"
	"sort"
	"strings"

	"sentimentpipe/backend-go/internal/models"
)

const topEntities = 10

var (
	cashtagRe = regexp.MustCompile(`\$[A-Za-z]{1,5}\b`)
	nameRe    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
)

// extractEntities counts $TICKER cashtags and capitalised multi-word names,
// returning the top entries by count then name.
func extractEntities(texts []string) []models.EntityCount {
	counts := map[string]int{}
	for _, t := range texts {
		for _, m := range cashtagRe.FindAllString(t, -1) {
			counts[strings.ToUpper(m)]++
		}
		for _, m := range nameRe.FindAllString(t, -1) {
			counts[m]++
		}
	}

	out := make([]models.EntityCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, models.EntityCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topEntities {
		out = out[:topEntities]
	}
	return out
}

const topicOther = "other"

// topicKeywords is checked in order; the first topic with a hit wins.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"economy", []string{"economy", "economic", "inflation", "gdp", "market", "markets", "stock", "stocks", "fed", "rates", "bank", "finance", "trade", "jobs"}},
	{"technology", []string{"tech", "technology", "ai", "software", "chip", "chips", "apple", "google", "microsoft", "startup", "crypto", "bitcoin"}},
	{"politics", []string{"election", "government", "president", "senate", "congress", "policy", "minister", "vote", "parliament"}},
	{"sports", []string{"game", "team", "league", "match", "season", "championship", "player", "cup"}},
	{"health", []string{"health", "covid", "vaccine", "hospital", "medical", "disease", "drug", "fda"}},
}

func classifyTopic(text string) string {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}
	for _, tk := range topicKeywords {
		for _, k := range tk.keywords {
			if words[k] {
				return tk.topic
			}
		}
	}
	return topicOther
}
