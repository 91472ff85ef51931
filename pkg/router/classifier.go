package router

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Classifier assigns an Intent to a task by keyword matching against the
// prompt and system prompt. Patterns are compiled once at construction.
type Classifier struct {
	patterns map[Intent][]*regexp.Regexp
}

// NewClassifier builds a classifier with the built-in keyword tables.
func NewClassifier() *Classifier {
	c := &Classifier{patterns: make(map[Intent][]*regexp.Regexp, len(intentKeywords))}
	for intent, keywords := range intentKeywords {
		compiled := make([]*regexp.Regexp, 0, len(keywords))
		for _, kw := range keywords {
			compiled = append(compiled, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		c.patterns[intent] = compiled
	}
	return c
}

func (c *Classifier) score(task *Task) map[Intent]int {
	text := strings.ToLower(task.SystemPrompt + " " + task.Prompt)
	scores := make(map[Intent]int)
	for intent, patterns := range c.patterns {
		n := 0
		for _, p := range patterns {
			if p.MatchString(text) {
				n++
			}
		}
		if n > 0 {
			scores[intent] = n
		}
	}
	return scores
}

func best(scores map[Intent]int) Intent {
	bestIntent := IntentUnknown
	bestScore := 0
	for _, intent := range intentOrder {
		if s := scores[intent]; s > bestScore {
			bestIntent = intent
			bestScore = s
		}
	}
	return bestIntent
}

// Classify returns the highest scoring intent, or IntentUnknown when nothing
// matches. Ties resolve to the earlier intent in declaration order.
func (c *Classifier) Classify(task *Task) Intent {
	return best(c.score(task))
}

// ClassifyWithConfidence classifies and reports a confidence in [0, 1].
// Confidence is the winner's share of all keyword hits, boosted by 20% when
// the winner scores more than double the runner-up.
func (c *Classifier) ClassifyWithConfidence(task *Task) (Intent, float64) {
	scores := c.score(task)
	if len(scores) == 0 {
		return IntentUnknown, 0.0
	}

	winner := best(scores)
	bestScore := scores[winner]
	total := 0
	for _, s := range scores {
		total += s
	}

	confidence := float64(bestScore) / float64(total)

	if len(scores) > 1 {
		all := make([]int, 0, len(scores))
		for _, s := range scores {
			all = append(all, s)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(all)))
		if bestScore > all[1]*2 {
			confidence = math.Min(1.0, confidence*1.2)
		}
	}

	return winner, math.Round(confidence*100) / 100
}

// BatchClassify classifies several tasks, keyed by task id.
func (c *Classifier) BatchClassify(tasks []*Task) map[string]Intent {
	out := make(map[string]Intent, len(tasks))
	for _, task := range tasks {
		out[task.ID] = c.Classify(task)
	}
	return out
}

// Explain returns a human-readable account of the classification, including
// up to three of the keywords that matched.
func (c *Classifier) Explain(task *Task) string {
	intent, confidence := c.ClassifyWithConfidence(task)
	if intent == IntentUnknown {
		return "Could not determine intent from prompt. Using default routing."
	}

	text := strings.ToLower(task.SystemPrompt + " " + task.Prompt)
	seen := make(map[string]bool)
	var matched []string
	for _, p := range c.patterns[intent] {
		if m := p.FindString(text); m != "" && !seen[m] {
			seen[m] = true
			matched = append(matched, m)
			if len(matched) == 3 {
				break
			}
		}
	}

	return fmt.Sprintf("Detected intent: %s (confidence: %.0f%%). Keywords matched: %s",
		intent, confidence*100, strings.Join(matched, ", "))
}
