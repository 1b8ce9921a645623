package model

// Style is the display record for one node type. The chrome draws cards
// from this; it never branches on the taxonomy itself.
type Style struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var defaultStyle = Style{Label: "Insight", Color: "#64748b", Icon: "sparkle"}

var stylesByType = map[NodeType]Style{
	NodeKeyMessage:         {Label: "Key Message", Color: "#2563eb", Icon: "megaphone"},
	NodeValueProposition:   {Label: "Value Proposition", Color: "#7c3aed", Icon: "gem"},
	NodeDifferentiator:     {Label: "Differentiator", Color: "#9333ea", Icon: "split"},
	NodeProofPoint:         {Label: "Proof Point", Color: "#0891b2", Icon: "shield-check"},
	NodeEpidemiologyFact:   {Label: "Epidemiology", Color: "#0d9488", Icon: "chart"},
	NodeSymptomBurden:      {Label: "Symptom Burden", Color: "#dc2626", Icon: "activity"},
	NodeTreatmentLandscape: {Label: "Treatment Landscape", Color: "#65a30d", Icon: "map"},
	NodeUnmetNeed:          {Label: "Unmet Need", Color: "#ea580c", Icon: "alert"},
	NodePatientMotivation:  {Label: "Patient Motivation", Color: "#16a34a", Icon: "heart"},
	NodePatientBelief:      {Label: "Patient Belief", Color: "#059669", Icon: "lightbulb"},
	NodePatientTension:     {Label: "Patient Tension", Color: "#e11d48", Icon: "zap"},
	NodeJourneyInsight:     {Label: "Journey Insight", Color: "#d97706", Icon: "route"},
	NodePrescribingDriver:  {Label: "Prescribing Driver", Color: "#4f46e5", Icon: "stethoscope"},
	NodeClinicalConcern:    {Label: "Clinical Concern", Color: "#b91c1c", Icon: "alert-circle"},
	NodePracticeConstraint: {Label: "Practice Constraint", Color: "#78350f", Icon: "lock"},
	NodeCompetitorPosition: {Label: "Competitor Position", Color: "#475569", Icon: "target"},
	NodeMarketBarrier:      {Label: "Market Barrier", Color: "#334155", Icon: "fence"},
}

// StyleFor is total over NodeType: unknown tags fall back to a neutral style.
func StyleFor(t NodeType) Style {
	if s, ok := stylesByType[t]; ok {
		return s
	}
	return defaultStyle
}
