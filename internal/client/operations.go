package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"heartguard-alerts/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

func withFilter(req *resty.Request, f domain.AlertFilter) *resty.Request {
	if f.Status != "" {
		req.SetQueryParam("status", string(f.Status))
	}
	if f.Level != "" {
		req.SetQueryParam("level", string(f.Level))
	}
	return req
}

// FetchOrgAlerts lists an organization's alerts. Unreadable records are omitted.
func (c *Client) FetchOrgAlerts(ctx context.Context, cred Credentials, orgID string, f domain.AlertFilter) ([]domain.Alert, error) {
	path := apiPrefix + "/orgs/" + url.PathEscape(orgID) + "/alerts"
	raw, err := c.do(ctx, withFilter(c.request(ctx, cred), f), http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	return c.decodeAlerts(raw)
}

// FetchPatientAlerts lists one patient's alerts. Unreadable records are omitted.
func (c *Client) FetchPatientAlerts(ctx context.Context, cred Credentials, patientID string, f domain.AlertFilter) ([]domain.Alert, error) {
	path := apiPrefix + "/patients/" + url.PathEscape(patientID) + "/alerts"
	raw, err := c.do(ctx, withFilter(c.request(ctx, cred), f), http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	return c.decodeAlerts(raw)
}

func (c *Client) transition(ctx context.Context, cred Credentials, alertID, action string, body domain.TransitionRequest) (domain.Alert, error) {
	path := apiPrefix + "/alerts/" + url.PathEscape(alertID) + "/" + action
	c.logger.Debug("Requesting alert transition",
		zap.String("alert_id", alertID),
		zap.String("action", action),
		zap.String("actor_user_id", body.ActorUserID),
	)
	raw, err := c.do(ctx, c.request(ctx, cred).SetBody(body), http.MethodPost, path)
	if err != nil {
		return domain.Alert{}, err
	}
	return c.decodeAlert(raw)
}

func (c *Client) Acknowledge(ctx context.Context, cred Credentials, alertID, actorUserID, notes string) (domain.Alert, error) {
	return c.transition(ctx, cred, alertID, "acknowledge", domain.TransitionRequest{ActorUserID: actorUserID, Notes: notes})
}

func (c *Client) Resolve(ctx context.Context, cred Credentials, alertID, actorUserID string, outcome domain.Outcome, notes string) (domain.Alert, error) {
	return c.transition(ctx, cred, alertID, "resolve", domain.TransitionRequest{ActorUserID: actorUserID, Outcome: outcome, Notes: notes})
}

func (c *Client) Close(ctx context.Context, cred Credentials, alertID, actorUserID string) (domain.Alert, error) {
	return c.transition(ctx, cred, alertID, "close", domain.TransitionRequest{ActorUserID: actorUserID})
}

// ValidateTruePositive asks the authority to record the label confirming alertID.
func (c *Client) ValidateTruePositive(ctx context.Context, cred Credentials, orgID, alertID string, d domain.LabelDraft) (domain.GroundTruthLabel, error) {
	path := apiPrefix + "/orgs/" + url.PathEscape(orgID) + "/alerts/" + url.PathEscape(alertID) + "/validate/true-positive"
	raw, err := c.do(ctx, c.request(ctx, cred).SetBody(d.Request()), http.MethodPost, path)
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	return c.decodeLabel(raw)
}

// ValidateFalsePositive marks alertID as a false positive and returns the marked alert.
func (c *Client) ValidateFalsePositive(ctx context.Context, cred Credentials, alertID, actorUserID, reason string) (domain.Alert, error) {
	path := apiPrefix + "/alerts/" + url.PathEscape(alertID) + "/validate/false-positive"
	body := domain.FalsePositiveRequest{ActorUserID: actorUserID, Reason: reason}
	raw, err := c.do(ctx, c.request(ctx, cred).SetBody(body), http.MethodPost, path)
	if err != nil {
		return domain.Alert{}, err
	}
	return c.decodeAlert(raw)
}

func (c *Client) CreateManualGroundTruth(ctx context.Context, cred Credentials, d domain.LabelDraft) (domain.GroundTruthLabel, error) {
	raw, err := c.do(ctx, c.request(ctx, cred).SetBody(d.Request()), http.MethodPost, apiPrefix+"/ground-truth")
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	return c.decodeLabel(raw)
}

func (c *Client) FetchPatientGroundTruth(ctx context.Context, cred Credentials, patientID string) ([]domain.GroundTruthLabel, error) {
	path := apiPrefix + "/patients/" + url.PathEscape(patientID) + "/ground-truth"
	raw, err := c.do(ctx, c.request(ctx, cred), http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	labels, _, err := c.normalizer.DecodeGroundTruthListJSON(raw)
	if err != nil {
		return nil, malformed("ground truth list", err)
	}
	return labels, nil
}

// FetchAccuracyStats reads the authority's aggregate for w. Bounds are sent as RFC3339.
func (c *Client) FetchAccuracyStats(ctx context.Context, cred Credentials, w domain.Window) (domain.AccuracyStats, error) {
	req := c.request(ctx, cred)
	if w.Start != nil {
		req.SetQueryParam("start", w.Start.Format(time.RFC3339Nano))
	}
	if w.End != nil {
		req.SetQueryParam("end", w.End.Format(time.RFC3339Nano))
	}
	raw, err := c.do(ctx, req, http.MethodGet, apiPrefix+"/accuracy")
	if err != nil {
		return domain.AccuracyStats{}, err
	}
	var stats domain.AccuracyStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.AccuracyStats{}, malformed("accuracy stats", err)
	}
	if stats.TruePositives < 0 || stats.FalsePositives < 0 {
		return domain.AccuracyStats{}, malformed("accuracy stats", domain.NewFailure(domain.KindMalformed, "negative count"))
	}
	return stats, nil
}
