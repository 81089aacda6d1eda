// Package navigation recognises explicit redirect requests such as
// "take me to the lab reports page" and resolves the requested phrase to a
// FeatureID.
package navigation

import (
	"regexp"
	"strings"

	"medchat/internal/models"
)

type template struct {
	re    *regexp.Regexp
	group int
}

// Templates are tried in order. Each is anchored at the end so the lazy
// capture spans the whole phrase rather than a single character.
var templates = []template{
	{regexp.MustCompile(`(?i)how (do i|to|can i) (get to|access|find|open|navigate to) (the )?(.+?)( page| section)?\??$`), 4},
	{regexp.MustCompile(`(?i)where (is|can i find) (the )?(.+?)( page| section)?\??$`), 3},
	{regexp.MustCompile(`(?i)take me to (.+?)( page| section)?$`), 1},
	{regexp.MustCompile(`(?i)show me (.+?)( page| section)?$`), 1},
	{regexp.MustCompile(`(?i)go to (.+?)( page| section)?$`), 1},
}

type alias struct {
	key     string
	feature models.FeatureID
}

// Longer keys come before shorter keys they contain so substring resolution
// prefers the most specific phrase.
var aliases = []alias{
	{"dashboard", models.FeatureDashboard},
	{"home", models.FeatureDashboard},
	{"main page", models.FeatureDashboard},
	{"patient details", models.FeaturePatientDetails},
	{"patient detail", models.FeaturePatientDetails},
	{"patient record", models.FeaturePatientDetails},
	{"patient list", models.FeaturePatients},
	{"patients", models.FeaturePatients},
	{"prescriptions", models.FeaturePrescriptions},
	{"prescription", models.FeaturePrescriptions},
	{"medications", models.FeaturePrescriptions},
	{"lab reports", models.FeatureLabReports},
	{"lab results", models.FeatureLabReports},
	{"laboratory", models.FeatureLabReports},
	{"lab", models.FeatureLabReports},
	{"tests", models.FeatureLabReports},
	{"vitals analytics", models.FeatureVitalsAnalytics},
	{"vital signs", models.FeatureVitalsAnalytics},
	{"vitals", models.FeatureVitalsAnalytics},
	{"analytics", models.FeatureVitalsAnalytics},
	{"appointments", models.FeatureAppointments},
	{"appointment", models.FeatureAppointments},
	{"calendar", models.FeatureAppointments},
	{"schedule", models.FeatureAppointments},
	{"my profile", models.FeatureProfile},
	{"profile", models.FeatureProfile},
	{"account", models.FeatureProfile},
	{"settings", models.FeatureSettings},
	{"preferences", models.FeatureSettings},
	{"help", models.FeatureHelp},
	{"support", models.FeatureHelp},
	{"faq", models.FeatureHelp},
}

// aliasPatterns match alias keys as whole words, allowing a plural "s".
var aliasPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(aliases))
	for i, a := range aliases {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(a.key) + `s?\b`)
	}
	return out
}()

var aliasIndex = func() map[string]models.FeatureID {
	idx := make(map[string]models.FeatureID, len(aliases))
	for _, a := range aliases {
		idx[a.key] = a.feature
	}
	return idx
}()

// Extractor resolves redirect utterances. The zero value is ready to use.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractRedirectTarget returns the feature requested by a redirect-style
// utterance. ok is false when no template matches or the captured phrase does
// not resolve to any alias.
func (e *Extractor) ExtractRedirectTarget(text string) (models.FeatureID, bool) {
	phrase, ok := CapturePhrase(text)
	if !ok {
		return "", false
	}
	return Resolve(phrase)
}

// CapturePhrase applies the redirect templates and returns the lowercased,
// trimmed target phrase of the first one that matches.
func CapturePhrase(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, ".! ")
	if text == "" {
		return "", false
	}
	for _, tpl := range templates {
		m := tpl.re.FindStringSubmatch(text)
		if m == nil || tpl.group >= len(m) {
			continue
		}
		phrase := strings.ToLower(strings.TrimSpace(m[tpl.group]))
		phrase = strings.TrimRight(phrase, "?")
		if phrase != "" {
			return phrase, true
		}
	}
	return "", false
}

// Resolve maps a captured phrase to a feature: first by exact alias key, then
// by the first alias key contained in the phrase as a whole word.
func Resolve(phrase string) (models.FeatureID, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return "", false
	}
	if id, ok := aliasIndex[phrase]; ok {
		return id, true
	}
	for i, a := range aliases {
		if aliasPatterns[i].MatchString(phrase) {
			return a.feature, true
		}
	}
	return "", false
}
