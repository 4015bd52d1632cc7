package campaigns

import "strings"

// Lexicon polarity scoring. Deliberately small: it backs stage-transition
// thresholds and the "sentiment" extraction type, nothing more.

var positiveWords = map[string]struct{}{
	"yes": {}, "yeah": {}, "sure": {}, "great": {}, "good": {}, "love": {},
	"interested": {}, "perfect": {}, "absolutely": {}, "definitely": {},
	"awesome": {}, "excellent": {}, "happy": {}, "thanks": {}, "thank": {},
}

var negativeWords = map[string]struct{}{
	"no": {}, "not": {}, "never": {}, "bad": {}, "hate": {}, "terrible": {},
	"awful": {}, "busy": {}, "stop": {}, "expensive": {}, "problem": {},
	"unhappy": {}, "worse": {}, "cancel": {},
}

// SentimentScore returns a polarity in [-1, 1] for the given text: the
// normalized balance of positive and negative lexicon hits. Empty or neutral
// text scores 0.
func SentimentScore(text string) float64 {
	var pos, neg int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
