package provider

import (
	"context"
	"regexp"
)

// RulesName is the name the rule provider reports.
const RulesName = "rules"

// GenericReply is returned when no keyword group matches.
const GenericReply = "I'm here to help with your medical records, prescriptions, lab reports, " +
	"and appointments. Could you tell me a little more about what you need?"

type ruleGroup struct {
	name    string
	pattern *regexp.Regexp
	reply   string
}

// ruleGroups are checked in order; the first match wins.
var ruleGroups = []ruleGroup{
	{
		name:    "patient records",
		pattern: regexp.MustCompile(`(?i)\b(patient|record|records|history|chart)\b`),
		reply: "Patient records are available from the Patients page. Open a patient to review " +
			"their demographics, visit history and clinical notes in one place.",
	},
	{
		name:    "diagnosis",
		pattern: regexp.MustCompile(`(?i)\b(diagnos\w*|symptom\w*|condition|disease)\b`),
		reply: "I can't provide a diagnosis, but I can help you find the relevant records. " +
			"Please consult the treating physician for any clinical assessment.",
	},
	{
		name:    "prescriptions",
		pattern: regexp.MustCompile(`(?i)\b(prescri\w*|medication\w*|medicine\w*|dosage|drug\w*|refill)\b`),
		reply: "Prescriptions can be created and reviewed from the Prescriptions page. " +
			"Each entry lists the medication, dosage, frequency and prescribing doctor.",
	},
	{
		name:    "lab results",
		pattern: regexp.MustCompile(`(?i)\b(lab|labs|laboratory|test|tests|result|results|report|reports)\b`),
		reply: "Lab reports are listed on the Lab Reports page, where you can upload new results " +
			"and compare them with earlier tests.",
	},
	{
		name:    "scheduling",
		pattern: regexp.MustCompile(`(?i)\b(appointment\w*|schedul\w*|book|booking|reschedul\w*|calendar|visit)\b`),
		reply: "Appointments can be booked, rescheduled or cancelled from the Appointments page. " +
			"Upcoming visits are also shown on your dashboard.",
	},
	{
		name:    "navigation",
		pattern: regexp.MustCompile(`(?i)\b(where|find|navigate|page|menu|open)\b`),
		reply: "You can reach every section from the sidebar menu. Tell me which page you need, " +
			"for example \"take me to lab reports\", and I'll open it for you.",
	},
	{
		name:    "documentation",
		pattern: regexp.MustCompile(`(?i)\b(document\w*|note|notes|upload|file|files|export)\b`),
		reply: "Clinical documents and notes are attached to each patient record. " +
			"Use the upload option on the patient details page to add new files.",
	},
	{
		name:    "billing",
		pattern: regexp.MustCompile(`(?i)\b(bill|billing|invoice\w*|payment\w*|insurance|charge\w*|cost)\b`),
		reply: "Billing questions are handled by the clinic's front desk. " +
			"You can find their contact details on the Help page.",
	},
}

// RuleProvider is the deterministic terminal stage. It never fails.
type RuleProvider struct{}

func NewRuleProvider() *RuleProvider { return &RuleProvider{} }

func (*RuleProvider) Name() string { return RulesName }

func (r *RuleProvider) Generate(_ context.Context, req Request) (string, error) {
	return r.Respond(req.Message), nil
}

// Respond returns the canned paragraph of the first matching keyword group,
// or GenericReply.
func (*RuleProvider) Respond(message string) string {
	for _, group := range ruleGroups {
		if group.pattern.MatchString(message) {
			return group.reply
		}
	}
	return GenericReply
}
