package intent

import (
	"testing"

	"medchat/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Classification
	}{
		{"navigation beats topic", "where can I see lab reports", Navigation(models.FeatureLabReports)},
		{"navigation beats greeting", "hi, open my prescriptions", Navigation(models.FeaturePrescriptions)},
		{"navigation beats topic name", "I need an appointment for my headache", Navigation(models.FeatureAppointments)},
		{"first feature in table order wins", "dashboard or settings?", Navigation(models.FeatureDashboard)},
		{"plural alias", "show the vital signs", Navigation(models.FeatureVitalsAnalytics)},
		{"greeting lower", "hello", Greeting},
		{"greeting upper", "HELLO", Greeting},
		{"greeting title", "Hello", Greeting},
		{"greeting with padding", "   hey there  ", Greeting},
		{"greeting word boundary", "history of headaches", TopicNamed("headache")},
		{"farewell", "bye for now", Farewell},
		{"farewell phrase", "See you tomorrow", Farewell},
		{"topic literal", "any diet tips?", TopicNamed("diet")},
		{"topic literal declaration order", "cold and fever since monday", TopicNamed("fever")},
		{"topic pattern", "I have a migraine", TopicNamed("headache")},
		{"topic pattern stress", "I feel anxious all the time", TopicNamed("stress")},
		{"topic pattern medication", "how many pills can I take", TopicNamed("medication")},
		{"literal before pattern", "my migraine keeps me from sleep", TopicNamed("sleep")},
		{"empty", "", Fallback},
		{"whitespace", "   ", Fallback},
		{"nothing matches", "what is the weather like", Fallback},
		{"substring is not a keyword", "is the doctor available", Fallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.in); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestRepliesCoverEveryClassification(t *testing.T) {
	for _, f := range Features() {
		if len(Replies(Navigation(f.ID))) == 0 {
			t.Fatalf("feature %s has no phrasings", f.ID)
		}
		if len(f.Aliases) == 0 {
			t.Fatalf("feature %s has no aliases", f.ID)
		}
	}
	for _, topic := range Topics() {
		if len(Replies(TopicNamed(topic.Name))) == 0 {
			t.Fatalf("topic %s has no replies", topic.Name)
		}
	}
	for _, c := range []Classification{Greeting, Farewell, Fallback, TopicNamed("unknown")} {
		if len(Replies(c)) == 0 {
			t.Fatalf("%s has no replies", c)
		}
	}
}

func TestFeatureTableCoversAllFeatureIDs(t *testing.T) {
	table := Features()
	if len(table) != len(models.Features) {
		t.Fatalf("table has %d features, want %d", len(table), len(models.Features))
	}
	for i, id := range models.Features {
		if table[i].ID != id {
			t.Fatalf("feature %d is %s, want %s", i, table[i].ID, id)
		}
	}
}

func TestClassificationString(t *testing.T) {
	if got := Navigation(models.FeatureHelp).String(); got != "Navigation(help)" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := TopicNamed("fever").String(); got != "Topic(fever)" {
		t.Fatalf("unexpected string %q", got)
	}
}
