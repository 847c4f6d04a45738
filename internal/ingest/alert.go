package ingest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"heartguard-alerts/internal/domain"
)

// alertFieldNames differ only in the classification codes between encodings.
type alertFieldNames struct {
	typ, level, status string
}

var (
	jsonAlertNames = alertFieldNames{typ: "type", level: "alert_level", status: "status"}
	xmlAlertNames  = alertFieldNames{typ: "type_code", level: "level_code", status: "status_code"}
)

var errNoID = errors.New("record has no id")

// buildAlert maps one record onto AlertParams. Only a missing id, or a record that
// still fails validation after unusable fields are dropped, rejects the record.
func buildAlert(r fieldReader, names alertFieldNames, rep *Report) (domain.Alert, error) {
	id, ok, err := r.str("id")
	if err != nil || !ok || strings.TrimSpace(id) == "" {
		return domain.Alert{}, errNoID
	}
	p := domain.AlertParams{ID: strings.TrimSpace(id)}

	skip := func(err error) {
		rep.SkippedFields++
		rep.warn("alert %s: %v", p.ID, err)
	}
	str := func(name string) *string {
		v, ok, err := r.str(name)
		if err != nil {
			skip(err)
			return nil
		}
		if !ok {
			return nil
		}
		return &v
	}
	if v := str("org_id"); v != nil {
		p.OrgID = *v
	}
	if v := str("patient_id"); v != nil {
		p.PatientID = *v
	}
	if v := str("patient_name"); v != nil {
		p.PatientName = *v
	}
	if v := str("description"); v != nil {
		p.Description = *v
	}

	var known bool
	p.Type, known = domain.ParseAlertType(deref(str(names.typ)))
	if !known {
		rep.fallback(FallbackType)
		rep.warn("alert %s: unrecognized type code, using %s", p.ID, p.Type)
	}
	p.Level, known = domain.ParseAlertLevel(deref(str(names.level)))
	if !known {
		rep.fallback(FallbackLevel)
		rep.warn("alert %s: unrecognized level code, using %s", p.ID, p.Level)
	}
	p.Status, known = domain.ParseAlertStatus(deref(str(names.status)))
	if !known {
		rep.fallback(FallbackStatus)
		rep.warn("alert %s: unrecognized status code, using %s", p.ID, p.Status)
	}

	if t, ok, err := r.time("created_at"); err != nil {
		skip(err)
	} else if ok {
		p.CreatedAt = t
	}
	if t, ok, err := r.time("acknowledged_at"); err != nil {
		skip(err)
	} else if ok {
		p.AcknowledgedAt = &t
	}
	if t, ok, err := r.time("resolved_at"); err != nil {
		skip(err)
	} else if ok {
		p.ResolvedAt = &t
	}
	if t, ok, err := r.time("false_positive_at"); err != nil {
		skip(err)
	} else if ok {
		p.FalsePositiveAt = &t
	}
	p.AcknowledgedByUserID = str("acknowledged_by_user_id")
	p.ResolvedByUserID = str("resolved_by_user_id")
	p.CreatedByModelID = str("created_by_model_id")
	p.SourceInferenceID = str("source_inference_id")
	p.FalsePositiveReason = str("false_positive_reason")

	if fp, ok, err := r.boolean("false_positive"); err != nil {
		skip(err)
	} else if ok {
		p.FalsePositive = fp
	}
	if v, ok, err := r.float("latitude"); err != nil {
		skip(err)
	} else if ok && v >= -90 && v <= 90 {
		p.Latitude = &v
	} else if ok {
		skip(fmt.Errorf("latitude out of range: %v", v))
	}
	if v, ok, err := r.float("longitude"); err != nil {
		skip(err)
	} else if ok && v >= -180 && v <= 180 {
		p.Longitude = &v
	} else if ok {
		skip(fmt.Errorf("longitude out of range: %v", v))
	}

	repairAlert(&p, skip)

	a, err := domain.NewAlert(p)
	if err != nil {
		return domain.Alert{}, err
	}
	return a, nil
}

// repairAlert drops field combinations that would violate the record invariants,
// so a half-populated record still loads.
func repairAlert(p *domain.AlertParams, skip func(error)) {
	if (p.AcknowledgedAt == nil) != (p.AcknowledgedByUserID == nil) {
		skip(errors.New("acknowledged_at and acknowledged_by_user_id must be set together"))
		p.AcknowledgedAt, p.AcknowledgedByUserID = nil, nil
	}
	if (p.ResolvedAt == nil) != (p.ResolvedByUserID == nil) {
		skip(errors.New("resolved_at and resolved_by_user_id must be set together"))
		p.ResolvedAt, p.ResolvedByUserID = nil, nil
	}
	resolved := p.Status == domain.AlertStatusResolved || p.Status == domain.AlertStatusClosed
	if p.ResolvedAt != nil && !resolved {
		skip(fmt.Errorf("resolved_at set while status is %s", p.Status))
		p.ResolvedAt, p.ResolvedByUserID = nil, nil
	}
	if p.FalsePositive && !resolved {
		skip(fmt.Errorf("false_positive set while status is %s", p.Status))
		p.FalsePositive, p.FalsePositiveReason, p.FalsePositiveAt = false, nil, nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DecodeAlertJSON normalizes a single JSON alert object.
func (n *Normalizer) DecodeAlertJSON(data []byte) (domain.Alert, Report, error) {
	var rep Report
	fields, err := newJSONFields(data)
	if err != nil {
		return domain.Alert{}, rep, domain.Failuref(domain.KindMalformed, "alert json: %v", err)
	}
	a, err := buildAlert(fields, jsonAlertNames, &rep)
	if err != nil {
		rep.SkippedRecords++
		n.observe("json", rep)
		return domain.Alert{}, rep, domain.Failuref(domain.KindMalformed, "alert json: %v", err)
	}
	rep.Records++
	n.observe("json", rep)
	return a, rep, nil
}

// DecodeAlertsJSON normalizes a JSON batch: a top-level array, or an object holding
// the array under "alerts" or "items". Elements that cannot be read are omitted.
// An error is returned only when the body is not a batch at all.
func (n *Normalizer) DecodeAlertsJSON(data []byte) ([]domain.Alert, Report, error) {
	var rep Report
	elems, err := unwrapList(data, "alerts", "items", "result")
	if err != nil {
		return nil, rep, domain.Failuref(domain.KindMalformed, "alert batch json: %v", err)
	}
	out := make([]domain.Alert, 0, len(elems))
	for i, raw := range elems {
		var recRep Report
		fields, err := newJSONFields(raw)
		if err == nil {
			var a domain.Alert
			if a, err = buildAlert(fields, jsonAlertNames, &recRep); err == nil {
				out = append(out, a)
				recRep.Records++
			}
		}
		if err != nil {
			recRep.SkippedRecords++
			recRep.warn("element %d skipped: %v", i, err)
		}
		rep.merge(recRep)
	}
	n.observe("json", rep)
	return out, rep, nil
}

// unwrapList returns the elements of a JSON array found at the top level or under
// one of keys.
func unwrapList(data []byte, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
		return elems, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		for _, k := range keys {
			if v, ok := obj[k]; ok {
				if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
					return []json.RawMessage{}, nil
				}
				return unwrapList(v, keys...)
			}
		}
		return nil, fmt.Errorf("object has none of %v", keys)
	case 'n':
		if bytes.Equal(trimmed, []byte("null")) {
			return []json.RawMessage{}, nil
		}
	}
	return nil, errors.New("body is not a list")
}

// xmlRecord captures every child element of a flat <alert>.
type xmlRecord struct {
	Fields []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

func (n *Normalizer) xmlFields(rec xmlRecord) xmlFields {
	values := make(map[string]string, len(rec.Fields))
	for _, f := range rec.Fields {
		values[f.XMLName.Local] = strings.TrimSpace(f.Value)
	}
	return xmlFields{values: values, parse: n.parseLegacyTime}
}

// DecodeAlertXML normalizes one legacy <alert> element.
func (n *Normalizer) DecodeAlertXML(data []byte) (domain.Alert, Report, error) {
	alerts, rep, err := n.DecodeAlertsXML(data)
	if err != nil {
		return domain.Alert{}, rep, err
	}
	if len(alerts) == 0 {
		return domain.Alert{}, rep, domain.NewFailure(domain.KindMalformed, "alert xml: no readable <alert> element")
	}
	return alerts[0], rep, nil
}

// DecodeAlertsXML walks the document and normalizes every <alert> element at any
// depth. A syntax error stops the walk; alerts read before it are kept and
// Report.Truncated is set.
func (n *Normalizer) DecodeAlertsXML(data []byte) ([]domain.Alert, Report, error) {
	var rep Report
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []domain.Alert
	seen := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if seen == 0 && len(out) == 0 {
				return nil, rep, domain.Failuref(domain.KindMalformed, "alert xml: %v", err)
			}
			rep.Truncated = true
			rep.warn("xml stopped after %d elements: %v", seen, err)
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "alert" {
			continue
		}
		seen++
		var rec xmlRecord
		if err := dec.DecodeElement(&rec, &start); err != nil {
			rep.SkippedRecords++
			rep.Truncated = true
			rep.warn("element %d unreadable: %v", seen, err)
			break
		}
		a, err := buildAlert(n.xmlFields(rec), xmlAlertNames, &rep)
		if err != nil {
			rep.SkippedRecords++
			rep.warn("element %d skipped: %v", seen, err)
			continue
		}
		rep.Records++
		out = append(out, a)
	}
	n.observe("xml", rep)
	if out == nil {
		out = []domain.Alert{}
	}
	return out, rep, nil
}
