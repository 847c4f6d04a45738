package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// OrgHeader 调用方声明的组织
const OrgHeader = "X-Org-Id"

// AnyOrg token 可访问所有组织
const AnyOrg = "*"

// Caller 已认证的调用方
type Caller struct {
	// OrgID 调用方的组织范围；空表示不限（AnyOrg token 且未指定组织）
	OrgID string
}

// allows 是否可访问 orgID
func (c Caller) allows(orgID string) bool {
	return c.OrgID == "" || c.OrgID == orgID
}

type callerKey struct{}

func callerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// Authenticator Bearer token 校验
type Authenticator struct {
	tokens map[string]string // token -> org id
	logger *zap.Logger
}

func NewAuthenticator(tokens map[string]string, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, logger: logger}
}

func (a *Authenticator) lookup(token string) (string, bool) {
	for t, org := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return org, true
		}
	}
	return "", false
}

// Wrap 缺失/未知 token -> 401 + 60401；token 与声明的组织不一致 -> 403
func (a *Authenticator) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, FailCode(ResultTokenExpired, "missing bearer token"))
			return
		}
		org, ok := a.lookup(strings.TrimSpace(token))
		if !ok {
			a.logger.Info("Rejected unknown token", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, FailCode(ResultTokenExpired, "token expired or invalid"))
			return
		}

		claimed := strings.TrimSpace(r.Header.Get(OrgHeader))
		caller := Caller{OrgID: org}
		if org == AnyOrg {
			caller.OrgID = claimed
		} else if claimed != "" && claimed != org {
			forbidden(w, claimed)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	}
}
