package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"heartguard-alerts/internal/domain"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, domain.Failuref(domain.KindValidation, "request body exceeds %d bytes", maxBytes)
	}
	return body, nil
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := readBody(r, maxBytes)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.Failuref(domain.KindValidation, "invalid json body: %v", err)
	}
	return nil
}

// writeError 按失败类型写出 HTTP 状态和业务码；未分类的错误按内部错误处理
func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	kind := domain.KindOf(err)
	code, status := domain.CodeFor(kind)
	if code == ResultError {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, Fail("internal error"))
		return
	}
	var f *domain.Failure
	msg := err.Error()
	if errors.As(err, &f) {
		msg = f.Message
	}
	writeJSON(w, status, FailCode(code, msg))
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, domain.Failuref(domain.KindValidation, "invalid %s: %v", name, err)
	}
	return &t, nil
}

func parseFilter(r *http.Request) domain.AlertFilter {
	q := r.URL.Query()
	return domain.AlertFilter{
		Status: domain.AlertStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Level:  domain.AlertLevel(strings.ToUpper(strings.TrimSpace(q.Get("level")))),
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
