package ingest

import (
	"errors"
	"fmt"
	"strings"

	"heartguard-alerts/internal/domain"
)

func buildGroundTruth(r fieldReader, rep *Report) (domain.GroundTruthLabel, error) {
	id, ok, err := r.str("id")
	if err != nil || !ok || strings.TrimSpace(id) == "" {
		return domain.GroundTruthLabel{}, errNoID
	}
	p := domain.GroundTruthParams{ID: strings.TrimSpace(id)}
	skip := func(err error) {
		rep.SkippedFields++
		rep.warn("ground truth %s: %v", p.ID, err)
	}
	str := func(name string) string {
		v, _, err := r.str(name)
		if err != nil {
			skip(err)
		}
		return v
	}

	p.PatientID = str("patient_id")
	p.AnnotatedByUserID = str("annotated_by_user_id")
	p.AnnotatedByUserName = str("annotated_by_user_name")
	p.Note = str("note")
	p.AlertID = str("alert_id")

	code := str("event_type_code")
	if code == "" {
		code = str("event_type")
	}
	var known bool
	p.EventType, known = domain.ParseEventType(code)
	if !known {
		rep.fallback(FallbackEventType)
		rep.warn("ground truth %s: unrecognized event type code, using %s", p.ID, p.EventType)
	}
	p.Source, known = domain.ParseGroundTruthSource(str("source"))
	if !known {
		rep.fallback(FallbackSource)
		rep.warn("ground truth %s: unrecognized source, using %s", p.ID, p.Source)
	}

	// onset is the one timestamp a label cannot exist without
	onset, ok, err := r.time("onset")
	if err != nil || !ok {
		if err == nil {
			err = errors.New("onset missing")
		}
		return domain.GroundTruthLabel{}, err
	}
	p.Onset = onset

	if t, ok, err := r.time("offset_at"); err != nil {
		skip(err)
	} else if ok && t.Before(onset) {
		skip(fmt.Errorf("offset_at %s before onset", t))
	} else if ok {
		p.OffsetAt = &t
	}
	if t, ok, err := r.time("created_at"); err != nil {
		skip(err)
	} else if ok {
		p.CreatedAt = t
	}
	if t, ok, err := r.time("updated_at"); err != nil {
		skip(err)
	} else if ok {
		p.UpdatedAt = t
	}

	return domain.NewGroundTruthLabel(p)
}

// DecodeGroundTruthJSON normalizes a single ground-truth label object.
func (n *Normalizer) DecodeGroundTruthJSON(data []byte) (domain.GroundTruthLabel, Report, error) {
	var rep Report
	fields, err := newJSONFields(data)
	if err != nil {
		return domain.GroundTruthLabel{}, rep, domain.Failuref(domain.KindMalformed, "ground truth json: %v", err)
	}
	l, err := buildGroundTruth(fields, &rep)
	if err != nil {
		rep.SkippedRecords++
		n.observe("json", rep)
		return domain.GroundTruthLabel{}, rep, domain.Failuref(domain.KindMalformed, "ground truth json: %v", err)
	}
	rep.Records++
	n.observe("json", rep)
	return l, rep, nil
}

// DecodeGroundTruthListJSON normalizes a list of labels (array, or under "labels"/"items").
func (n *Normalizer) DecodeGroundTruthListJSON(data []byte) ([]domain.GroundTruthLabel, Report, error) {
	var rep Report
	elems, err := unwrapList(data, "labels", "items", "result")
	if err != nil {
		return nil, rep, domain.Failuref(domain.KindMalformed, "ground truth list json: %v", err)
	}
	out := make([]domain.GroundTruthLabel, 0, len(elems))
	for i, raw := range elems {
		fields, err := newJSONFields(raw)
		if err == nil {
			var l domain.GroundTruthLabel
			if l, err = buildGroundTruth(fields, &rep); err == nil {
				out = append(out, l)
				rep.Records++
				continue
			}
		}
		rep.SkippedRecords++
		rep.warn("element %d skipped: %v", i, err)
	}
	n.observe("json", rep)
	return out, rep, nil
}
