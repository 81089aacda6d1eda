package intent

import (
	"regexp"

	"medchat/internal/models"
)

// Feature is a navigable UI section with the keywords that select it and the
// canned phrasings used when redirecting to it.
type Feature struct {
	ID        models.FeatureID
	Aliases   []string
	Phrasings []string
}

// Topic is a medical subject the rule-based replies know about.
type Topic struct {
	Name    string
	Pattern *regexp.Regexp
	Replies []string
}

// Feature order is part of the classification contract: the first feature
// with a keyword hit wins.
var featureTable = []Feature{
	{
		ID:      models.FeatureDashboard,
		Aliases: []string{"dashboard", "home page", "main page", "overview"},
		Phrasings: []string{
			"Taking you to the dashboard, where you can see today's overview.",
			"Here is your dashboard with a summary of recent activity.",
		},
	},
	{
		ID:      models.FeaturePatients,
		Aliases: []string{"patients", "patient list", "all patients"},
		Phrasings: []string{
			"Opening the patients list so you can browse and search your patients.",
			"Here is the patients section. You can add, search, and manage patients there.",
		},
	},
	{
		ID:      models.FeaturePatientDetails,
		Aliases: []string{"patient details", "patient detail", "patient profile", "patient record", "patient chart"},
		Phrasings: []string{
			"Opening patient details, where you can review the full patient record.",
			"Here are the patient details with history, prescriptions, and reports.",
		},
	},
	{
		ID:      models.FeaturePrescriptions,
		Aliases: []string{"prescription", "medication list", "rx list"},
		Phrasings: []string{
			"Taking you to prescriptions, where you can create and review prescriptions.",
			"Here is the prescriptions section for writing and managing prescriptions.",
		},
	},
	{
		ID:      models.FeatureLabReports,
		Aliases: []string{"lab", "laboratory", "test", "report", "lab result"},
		Phrasings: []string{
			"Opening lab reports so you can upload and review test results.",
			"Here are the lab reports. You can filter them by patient and date.",
		},
	},
	{
		ID:      models.FeatureVitalsAnalytics,
		Aliases: []string{"vitals", "vital signs", "analytics", "blood pressure chart"},
		Phrasings: []string{
			"Taking you to vitals analytics, where you can track trends over time.",
			"Here is the vitals analytics view with charts for each patient.",
		},
	},
	{
		ID:      models.FeatureAppointments,
		Aliases: []string{"appointment", "calendar", "schedule"},
		Phrasings: []string{
			"Opening appointments so you can view and book visits.",
			"Here is the appointments calendar.",
		},
	},
	{
		ID:      models.FeatureProfile,
		Aliases: []string{"my profile", "profile", "account"},
		Phrasings: []string{
			"Taking you to your profile, where you can update your details.",
			"Here is your profile page.",
		},
	},
	{
		ID:      models.FeatureSettings,
		Aliases: []string{"settings", "preferences", "configuration"},
		Phrasings: []string{
			"Opening settings so you can adjust your preferences.",
			"Here are the application settings.",
		},
	},
	{
		ID:      models.FeatureHelp,
		Aliases: []string{"help center", "help page", "help section", "support page", "faq"},
		Phrasings: []string{
			"Taking you to the help center with guides and answers to common questions.",
			"Here is the help section. Let me know if you still need a hand.",
		},
	},
}

// Topic order is part of the classification contract as well. Literal names
// are checked for every topic before any pattern is tried.
var topicTable = []Topic{
	{
		Name:    "headache",
		Pattern: regexp.MustCompile(`\b(headaches?|migraines?|head pain|head hurts?)\b`),
		Replies: []string{
			"For headaches, rest in a quiet, dark room, stay hydrated, and consider an over-the-counter pain reliever. Seek care if it is sudden, severe, or comes with vision changes or a stiff neck.",
			"Most headaches ease with rest, water, and regular meals. If headaches are frequent or unusually intense, please discuss them with a clinician.",
		},
	},
	{
		Name:    "fever",
		Pattern: regexp.MustCompile(`\b(fever|feverish|high temperature|temperature|chills)\b`),
		Replies: []string{
			"For a fever, rest and drink plenty of fluids. A fever above 39.4°C (103°F), or one lasting more than three days, should be checked by a doctor.",
			"Monitor the temperature regularly and stay hydrated. Seek prompt care for a fever with a rash, confusion, or difficulty breathing.",
		},
	},
	{
		Name:    "cold",
		Pattern: regexp.MustCompile(`\b(flu|cough(ing)?|sneez\w*|runny nose|sore throat|congestion)\b`),
		Replies: []string{
			"Common colds usually clear within a week to ten days. Rest, fluids, and saline rinses help with symptoms.",
			"For cold symptoms, warm drinks and rest are a good start. See a clinician if symptoms worsen after a week or breathing becomes difficult.",
		},
	},
	{
		Name:    "prescription",
		Pattern: regexp.MustCompile(`\b(refills?|rx)\b`),
		Replies: []string{
			"Prescriptions can be created and reviewed from the prescriptions section. Each prescription is tied to a patient record.",
			"To renew or review a prescription, open the patient's record and check the prescriptions tab.",
		},
	},
	{
		Name:    "appointment",
		Pattern: regexp.MustCompile(`\b(booking|book a visit|see a doctor|consultation)\b`),
		Replies: []string{
			"Appointments can be booked and reviewed from the appointments calendar.",
			"To schedule a visit, pick a free slot in the calendar and attach it to the patient.",
		},
	},
	{
		Name:    "diet",
		Pattern: regexp.MustCompile(`\b(nutrition|food|eating|meals?|calories)\b`),
		Replies: []string{
			"A balanced diet includes vegetables, fruit, whole grains, lean protein, and plenty of water. Limit processed foods and added sugar.",
			"Regular, balanced meals support energy and recovery. A dietitian can tailor advice to specific conditions.",
		},
	},
	{
		Name:    "exercise",
		Pattern: regexp.MustCompile(`\b(workouts?|fitness|physical activity|training)\b`),
		Replies: []string{
			"Adults benefit from about 150 minutes of moderate activity a week plus two days of strength training.",
			"Start gradually and choose activities you enjoy. Check with a clinician before starting an intense programme.",
		},
	},
	{
		Name:    "sleep",
		Pattern: regexp.MustCompile(`\b(insomnia|tired|fatigue|can't sleep|cannot sleep)\b`),
		Replies: []string{
			"Most adults need seven to nine hours of sleep. A consistent schedule and a screen-free hour before bed help.",
			"Avoid caffeine late in the day and keep the bedroom cool and dark. Persistent insomnia is worth discussing with a clinician.",
		},
	},
	{
		Name:    "stress",
		Pattern: regexp.MustCompile(`\b(anxiety|anxious|overwhelmed|burn(ed)? out|burnout)\b`),
		Replies: []string{
			"Short breaks, slow breathing, and regular exercise all help manage stress.",
			"If stress is affecting daily life, talking to a mental health professional can help.",
		},
	},
	{
		Name:    "medication",
		Pattern: regexp.MustCompile(`\b(medicines?|pills?|drugs?|dosage|dose)\b`),
		Replies: []string{
			"Always take medication as prescribed, and check with a pharmacist before combining medicines.",
			"Keep an up-to-date list of current medications and share it with every clinician you see.",
		},
	},
}

var greetingReplies = []string{
	"Hello! I'm your healthcare assistant. I can help you find patients, prescriptions, lab reports, and more.",
	"Hi there! How can I help you today? You can ask me a health question or ask me to take you somewhere in the app.",
}

var farewellReplies = []string{
	"Goodbye! Take care and stay healthy.",
	"See you soon! Reach out whenever you need help.",
}

var fallbackReplies = []string{
	"I'm not sure I understood that. You can ask about symptoms, medications, or say something like \"take me to lab reports\".",
	"I can help with health questions and with finding your way around the app. Could you rephrase your question?",
}

// Features returns the feature table in declaration order.
func Features() []Feature {
	out := make([]Feature, len(featureTable))
	copy(out, featureTable)
	return out
}

// Topics returns the topic table in declaration order.
func Topics() []Topic {
	out := make([]Topic, len(topicTable))
	copy(out, topicTable)
	return out
}

// Phrasings returns the canned redirect phrasings for a feature.
func Phrasings(id models.FeatureID) []string {
	for _, f := range featureTable {
		if f.ID == id {
			return f.Phrasings
		}
	}
	return nil
}
