// Package intent maps free text to a Classification using keyword and
// regular-expression tables. Matching is deliberately shallow: when several
// keywords qualify, table declaration order decides.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"medchat/internal/models"
)

// Kind tags the variant of a Classification.
type Kind int

const (
	KindFallback Kind = iota
	KindNavigation
	KindGreeting
	KindFarewell
	KindTopic
)

func (k Kind) String() string {
	switch k {
	case KindNavigation:
		return "navigation"
	case KindGreeting:
		return "greeting"
	case KindFarewell:
		return "farewell"
	case KindTopic:
		return "topic"
	default:
		return "fallback"
	}
}

// Classification is the result of Classify. Feature is set only for
// KindNavigation and Topic only for KindTopic.
type Classification struct {
	Kind    Kind
	Feature models.FeatureID
	Topic   string
}

func (c Classification) String() string {
	switch c.Kind {
	case KindNavigation:
		return fmt.Sprintf("Navigation(%s)", c.Feature)
	case KindTopic:
		return fmt.Sprintf("Topic(%s)", c.Topic)
	case KindGreeting:
		return "Greeting"
	case KindFarewell:
		return "Farewell"
	default:
		return "Fallback"
	}
}

func Navigation(id models.FeatureID) Classification {
	return Classification{Kind: KindNavigation, Feature: id}
}

func TopicNamed(name string) Classification {
	return Classification{Kind: KindTopic, Topic: name}
}

var (
	Greeting = Classification{Kind: KindGreeting}
	Farewell = Classification{Kind: KindFarewell}
	Fallback = Classification{Kind: KindFallback}
)

var (
	greetingPattern = regexp.MustCompile(`^(hi|hello|hey|greetings)\b`)
	farewellPattern = regexp.MustCompile(`^(bye|goodbye|see you|farewell)\b`)
)

type featureMatcher struct {
	id       models.FeatureID
	patterns []*regexp.Regexp
}

type topicMatcher struct {
	name    string
	literal *regexp.Regexp
	pattern *regexp.Regexp
}

var (
	featureMatchers = buildFeatureMatchers(featureTable)
	topicMatchers   = buildTopicMatchers(topicTable)
)

// keywordPattern matches kw as whole words, tolerating a plural "s".
func keywordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `s?\b`)
}

func buildFeatureMatchers(table []Feature) []featureMatcher {
	out := make([]featureMatcher, 0, len(table))
	for _, f := range table {
		m := featureMatcher{id: f.ID}
		for _, alias := range f.Aliases {
			m.patterns = append(m.patterns, keywordPattern(alias))
		}
		out = append(out, m)
	}
	return out
}

func buildTopicMatchers(table []Topic) []topicMatcher {
	out := make([]topicMatcher, 0, len(table))
	for _, t := range table {
		out = append(out, topicMatcher{
			name:    t.Name,
			literal: keywordPattern(t.Name),
			pattern: t.Pattern,
		})
	}
	return out
}

// Classify maps text to exactly one Classification. The checks run in a fixed
// order and the first hit wins: navigation keywords, greeting, farewell,
// topic names, topic patterns, then fallback.
func Classify(text string) Classification {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Fallback
	}
	if id, ok := MatchFeature(t); ok {
		return Navigation(id)
	}
	if greetingPattern.MatchString(t) {
		return Greeting
	}
	if farewellPattern.MatchString(t) {
		return Farewell
	}
	for _, m := range topicMatchers {
		if m.literal.MatchString(t) {
			return TopicNamed(m.name)
		}
	}
	for _, m := range topicMatchers {
		if m.pattern != nil && m.pattern.MatchString(t) {
			return TopicNamed(m.name)
		}
	}
	return Fallback
}

// MatchFeature runs the navigation keyword scan alone. text must already be
// lowercased.
func MatchFeature(text string) (models.FeatureID, bool) {
	for _, m := range featureMatchers {
		for _, re := range m.patterns {
			if re.MatchString(text) {
				return m.id, true
			}
		}
	}
	return "", false
}

// Replies returns the rule-based reply pool for a classification.
func Replies(c Classification) []string {
	switch c.Kind {
	case KindNavigation:
		return Phrasings(c.Feature)
	case KindGreeting:
		return greetingReplies
	case KindFarewell:
		return farewellReplies
	case KindTopic:
		for _, t := range topicTable {
			if t.Name == c.Topic {
				return t.Replies
			}
		}
	}
	return fallbackReplies
}
