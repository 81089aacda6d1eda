package models

// FeatureID names a section of the UI that can be the target of a redirect.
type FeatureID string

const (
	FeatureDashboard       FeatureID = "dashboard"
	FeaturePatients        FeatureID = "patients"
	FeaturePatientDetails  FeatureID = "patientDetails"
	FeaturePrescriptions   FeatureID = "prescriptions"
	FeatureLabReports      FeatureID = "labReports"
	FeatureVitalsAnalytics FeatureID = "vitalsAnalytics"
	FeatureAppointments    FeatureID = "appointments"
	FeatureProfile         FeatureID = "profile"
	FeatureSettings        FeatureID = "settings"
	FeatureHelp            FeatureID = "help"
)

// Features lists every FeatureID in declaration order.
var Features = []FeatureID{
	FeatureDashboard,
	FeaturePatients,
	FeaturePatientDetails,
	FeaturePrescriptions,
	FeatureLabReports,
	FeatureVitalsAnalytics,
	FeatureAppointments,
	FeatureProfile,
	FeatureSettings,
	FeatureHelp,
}

// Valid reports whether f is one of the known features.
func (f FeatureID) Valid() bool {
	for _, known := range Features {
		if known == f {
			return true
		}
	}
	return false
}
