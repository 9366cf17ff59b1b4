package quality

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Scoring constants.
const (
	// NoteworthyThreshold is the scorer's own acceptance line.
	NoteworthyThreshold = 0.15

	MinWords        = 3
	TooShortScore   = 0.1
	BaseScore       = 0.15
	FillerWeight    = 0.1
	IdealMinWords   = 5
	IdealMaxWords   = 100
	LongWords       = 150
	LengthAdjust    = 0.05
	QuestionPenalty = 0.02
)

// ContentQuality is the verdict for one flushed segment.
type ContentQuality struct {
	Score        float64  `json:"score"`
	IsNoteworthy bool     `json:"is_noteworthy"`
	Reason       string   `json:"reason"`
	Indicators   []string `json:"indicators,omitempty"`
}

// Indicator is one weighted signal of informational content.
type Indicator struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  float64
}

// indicators is matched in order; each adds its weight at most once.
var indicators = []Indicator{
	{"numbers", regexp.MustCompile(`(?i)\d|\b(?:hundred|thousand|million|billion|percent|dozen)\b`), 0.15},
	{"proper nouns", regexp.MustCompile(`\b[a-z]+[,;]?\s+[A-Z][a-z]+`), 0.1},
	{"factual statement", regexp.MustCompile(`(?i)\b(?:is|are|was|were|has|have|had|shows?|showed|means|confirmed|announced|reported|found|decided|agreed)\b`), 0.1},
	{"technical terms", regexp.MustCompile(`(?i)\b(?:api|database|server|deploy\w*|algorithm|software|hardware|code|bug|release|version|data|metrics?|revenue|budget|analytics|infrastructure|cloud|model|pipeline|system|platform|kpi|roi|q[1-4])\b`), 0.15},
	{"comparison", regexp.MustCompile(`(?i)\b(?:more|less|better|worse|higher|lower|faster|slower|bigger|smaller|increased?|increases|decreased?|decreases|grew|growth|dropped|compared|versus|vs|than)\b`), 0.1},
	{"time reference", regexp.MustCompile(`(?i)\b(?:today|tomorrow|yesterday|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|january|february|march|april|june|july|august|september|october|november|december|next week|last week|next month|deadline|morning|afternoon|evening|\d{1,2}\s?(?:am|pm)|\d{1,2}:\d{2})\b`), 0.1},
	{"cause and effect", regexp.MustCompile(`(?i)\b(?:because|therefore|thus|hence|so that|due to|as a result|consequently|leads? to|caused?|results? in)\b`), 0.1},
	{"enumeration", regexp.MustCompile(`(?i)\b(?:firstly|secondly|thirdly|first of all|finally|additionally|furthermore|moreover|step \d+|number one|number two)\b`), 0.1},
	{"definition", regexp.MustCompile(`(?i)\b(?:is defined as|refers to|means that|is called|is known as|stands for|is a kind of|is a type of|in other words)\b`), 0.15},
	{"people", regexp.MustCompile(`\b(?:John|Sarah|Mike|Michael|David|Emma|Alex|Chris|Lisa|Anna|James|Maria|Tom|Kate|Paul|Laura|Peter|Daniel|Emily|Olivia)\b`), 0.1},
	{"workplace", regexp.MustCompile(`(?i)\b(?:meeting|project|team|client|customer|manager|report|presentation|proposal|contract|sprint|roadmap|stakeholders?|quarter|agenda|hiring|launch)\b`), 0.1},
	{"location", regexp.MustCompile(`(?i)\b(?:office|room|building|city|street|headquarters|downtown|floor|site|campus|warehouse|london|paris|new york|berlin|tokyo)\b`), 0.05},
	{"action item", regexp.MustCompile(`(?i)\b(?:will|should|need to|needs to|must|going to|have to|has to|let's|follow up|schedule|send|review|assigned|prepare|finish|complete|update|fix|moved?)\b`), 0.1},
}

// fillerWords are single-token hedges; fillerPhrases are counted separately.
var fillerWords = map[string]bool{
	"um": true, "umm": true, "uh": true, "er": true, "erm": true, "ah": true,
	"hmm": true, "like": true, "so": true, "yeah": true, "well": true,
	"okay": true, "ok": true, "basically": true, "actually": true,
	"literally": true, "right": true,
}

var fillerPhrases = []string{"you know", "i mean", "kind of", "sort of", "i guess"}

var questionRegex = regexp.MustCompile(`(?i)^\s*(?:what|why|how|when|where|who|which|is|are|do|does|did|can|could|would|should|will)\b|\?\s*$`)

// Indicators returns the indicator table in match order.
func Indicators() []Indicator {
	return append([]Indicator(nil), indicators...)
}

// Score rates how much information text carries.
func Score(text string) ContentQuality {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ContentQuality{Score: 0, Reason: "empty"}
	}

	words := strings.Fields(trimmed)
	if len(words) < MinWords {
		return ContentQuality{Score: TooShortScore, Reason: "too short"}
	}

	score := BaseScore

	var matched []string
	for _, ind := range indicators {
		if ind.Pattern.MatchString(trimmed) {
			score += ind.Weight
			matched = append(matched, ind.Name)
		}
	}

	score -= float64(countFillers(words)) / float64(len(words)) * FillerWeight

	switch {
	case len(words) > IdealMinWords && len(words) < IdealMaxWords:
		score += LengthAdjust
	case len(words) > LongWords:
		score -= LengthAdjust
	}

	if questionRegex.MatchString(trimmed) {
		score -= QuestionPenalty
	}

	score = math.Max(0, math.Min(1, score))
	result := ContentQuality{
		Score:        score,
		IsNoteworthy: score >= NoteworthyThreshold,
		Indicators:   matched,
	}

	switch {
	case result.IsNoteworthy && len(matched) > 0:
		result.Reason = "contains " + strings.Join(matched, ", ")
	case result.IsNoteworthy:
		result.Reason = "meets minimum length"
	case len(matched) > 0:
		result.Reason = "insufficient information density"
	default:
		result.Reason = "no informational signal"
	}
	return result
}

// countFillers counts filler tokens plus filler phrases.
func countFillers(words []string) int {
	count := 0
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tok := stripPunct(strings.ToLower(w))
		if fillerWords[tok] {
			count++
		}
		tokens = append(tokens, tok)
	}
	lower := " " + strings.Join(tokens, " ") + " "
	for _, phrase := range fillerPhrases {
		count += strings.Count(lower, " "+phrase+" ")
	}
	return count
}

func stripPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
