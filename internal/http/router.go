package httpapi

import (
	"net/http"

	"heartguard-alerts/internal/catalog"

	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// Router 使用标准库 http.ServeMux（方法 + 路径参数模式）
type Router struct {
	mux    *http.ServeMux
	auth   *Authenticator
	logger *zap.Logger
}

func NewRouter(auth *Authenticator, logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		auth:   auth,
		logger: logger,
	}
	r.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// api 注册需要认证的接口
func (r *Router) api(method, path string, h http.HandlerFunc) {
	r.mux.HandleFunc(method+" "+apiPrefix+path, r.auth.Wrap(h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAlertRoutes 告警列表、状态变更、确认、写入
func (r *Router) RegisterAlertRoutes(h *AlertHandler) {
	r.api(http.MethodGet, "/orgs/{org}/alerts", h.ListOrgAlerts)
	r.api(http.MethodGet, "/patients/{pid}/alerts", h.ListPatientAlerts)

	r.api(http.MethodPost, "/alerts", h.Ingest)
	r.api(http.MethodPost, "/alerts/{id}/acknowledge", h.Transition("acknowledge"))
	r.api(http.MethodPost, "/alerts/{id}/resolve", h.Transition("resolve"))
	r.api(http.MethodPost, "/alerts/{id}/close", h.Transition("close"))

	r.api(http.MethodPost, "/orgs/{org}/alerts/{id}/validate/true-positive", h.ValidateTruePositive)
	r.api(http.MethodPost, "/alerts/{id}/validate/false-positive", h.ValidateFalsePositive)
}

// RegisterGroundTruthRoutes 真值标注、导出、准确率
func (r *Router) RegisterGroundTruthRoutes(h *GroundTruthHandler) {
	r.api(http.MethodPost, "/ground-truth", h.CreateManual)
	r.api(http.MethodGet, "/patients/{pid}/ground-truth", h.ListByPatient)
	r.api(http.MethodGet, "/patients/{pid}/ground-truth/export", h.Export)
	r.api(http.MethodGet, "/accuracy", h.Accuracy)
}

// RegisterCatalogRoutes 分类代码展示元数据（前端渲染用）
func (r *Router) RegisterCatalogRoutes() {
	r.api(http.MethodGet, "/catalog", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(catalog.All()))
	})
}
