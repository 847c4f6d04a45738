package domain

// GroundTruthSource 标注来源
type GroundTruthSource string

const (
	SourceAIModel       GroundTruthSource = "AI_MODEL"
	SourceManual        GroundTruthSource = "MANUAL"
	SourceMedicalRecord GroundTruthSource = "MEDICAL_RECORD"
)

const FallbackGroundTruthSource = SourceManual

func ParseGroundTruthSource(code string) (GroundTruthSource, bool) {
	s := GroundTruthSource(normalizeCode(code))
	if s.Valid() {
		return s, true
	}
	return FallbackGroundTruthSource, false
}

func (s GroundTruthSource) Valid() bool {
	return s == SourceAIModel || s == SourceManual || s == SourceMedicalRecord
}

func (s GroundTruthSource) String() string { return string(s) }

// Outcome is a clinician's judgment on an AI-raised alert.
type Outcome string

const (
	OutcomeTruePositive  Outcome = "TRUE_POSITIVE"
	OutcomeFalsePositive Outcome = "FALSE_POSITIVE"
)

// ParseOutcome has no fallback: an unknown outcome is a validation failure.
func ParseOutcome(code string) (Outcome, error) {
	o := Outcome(normalizeCode(code))
	if o.Valid() {
		return o, nil
	}
	return "", NewFailure(KindValidation, "invalid outcome: "+code)
}

func (o Outcome) Valid() bool {
	return o == OutcomeTruePositive || o == OutcomeFalsePositive
}

func (o Outcome) String() string { return string(o) }
