package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"heartguard-alerts/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// pgUniqueViolation SQLSTATE 23505
const pgUniqueViolation = "23505"

const alertColumns = `
	id,
	org_id,
	patient_id,
	patient_name,
	type_code,
	level_code,
	status_code,
	description,
	created_at,
	acknowledged_at,
	acknowledged_by_user_id,
	resolved_at,
	resolved_by_user_id,
	created_by_model_id,
	source_inference_id,
	latitude,
	longitude,
	false_positive,
	false_positive_reason,
	false_positive_at`

// PostgresAlertsRepository 告警 Repository 实现
type PostgresAlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresAlertsRepository(db *sql.DB, logger *zap.Logger) *PostgresAlertsRepository {
	return &PostgresAlertsRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ AlertsRepository = (*PostgresAlertsRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (domain.Alert, error) {
	var (
		p                               domain.AlertParams
		typ, level, status              string
		ackAt, resolvedAt, fpAt         sql.NullTime
		ackBy, resolvedBy, model, infer sql.NullString
		fpReason                        sql.NullString
		lat, lon                        sql.NullFloat64
	)
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.PatientID,
		&p.PatientName,
		&typ,
		&level,
		&status,
		&p.Description,
		&p.CreatedAt,
		&ackAt,
		&ackBy,
		&resolvedAt,
		&resolvedBy,
		&model,
		&infer,
		&lat,
		&lon,
		&p.FalsePositive,
		&fpReason,
		&fpAt,
	)
	if err != nil {
		return domain.Alert{}, err
	}

	p.Type = domain.AlertType(typ)
	p.Level = domain.AlertLevel(level)
	p.Status = domain.AlertStatus(status)
	p.AcknowledgedAt = nullTime(ackAt)
	p.AcknowledgedByUserID = nullString(ackBy)
	p.ResolvedAt = nullTime(resolvedAt)
	p.ResolvedByUserID = nullString(resolvedBy)
	p.CreatedByModelID = nullString(model)
	p.SourceInferenceID = nullString(infer)
	p.FalsePositiveReason = nullString(fpReason)
	p.FalsePositiveAt = nullTime(fpAt)
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return domain.NewAlert(p)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// GetAlert 根据 id 获取单个告警
func (r *PostgresAlertsRepository) GetAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	if alertID == "" {
		return domain.Alert{}, domain.NewFailure(domain.KindValidation, "alert_id is required")
	}
	query := `SELECT` + alertColumns + `
		FROM alerts
		WHERE id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Alert{}, notFound("alert", alertID)
		}
		return domain.Alert{}, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// ListAlerts 列表查询
func (r *PostgresAlertsRepository) ListAlerts(ctx context.Context, filters AlertFilters) ([]domain.Alert, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 1
	add := func(cond string, v any) {
		where = append(where, fmt.Sprintf(cond, argN))
		args = append(args, v)
		argN++
	}
	if filters.OrgID != "" {
		add("org_id = $%d", filters.OrgID)
	}
	if filters.PatientID != "" {
		add("patient_id = $%d", filters.PatientID)
	}
	if filters.Status != "" {
		add("status_code = $%d", string(filters.Status))
	}
	if filters.Level != "" {
		add("level_code = $%d", string(filters.Level))
	}

	query := fmt.Sprintf(`SELECT %s
		FROM alerts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d`, alertColumns, strings.Join(where, " AND "), filters.limit())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	out := []domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			// 单条脏数据不影响整个列表
			r.logger.Warn("Skipping unreadable alert row", zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}

// CreateAlert 创建告警
func (r *PostgresAlertsRepository) CreateAlert(ctx context.Context, alert domain.Alert) error {
	if alert.IsZero() {
		return domain.NewFailure(domain.KindValidation, "alert is required")
	}
	p := alert.Params()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO alerts (` + alertColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.OrgID,
		p.PatientID,
		p.PatientName,
		string(p.Type),
		string(p.Level),
		string(p.Status),
		p.Description,
		createdAt,
		p.AcknowledgedAt,
		p.AcknowledgedByUserID,
		p.ResolvedAt,
		p.ResolvedByUserID,
		p.CreatedByModelID,
		p.SourceInferenceID,
		p.Latitude,
		p.Longitude,
		p.FalsePositive,
		p.FalsePositiveReason,
		p.FalsePositiveAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return domain.Failuref(domain.KindStateConflict, "alert %s already exists", p.ID)
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func statusCodes(statuses []domain.AlertStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// transition runs a conditional UPDATE ... RETURNING. No row back means the alert
// is missing or was not in an allowed source status; a second read tells which.
func (r *PostgresAlertsRepository) transition(ctx context.Context, alertID string, target domain.AlertStatus, set string, args ...any) (domain.Alert, error) {
	if alertID == "" {
		return domain.Alert{}, domain.NewFailure(domain.KindValidation, "alert_id is required")
	}
	sources := domain.TransitionSources(target)
	all := append([]any{alertID, pq.Array(statusCodes(sources))}, args...)
	query := `
		UPDATE alerts
		SET ` + set + `
		WHERE id = $1
		  AND status_code = ANY($2)
		RETURNING` + alertColumns

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, all...))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("failed to move alert to %s: %w", target, err)
	}

	current, getErr := r.GetAlert(ctx, alertID)
	if getErr != nil {
		return domain.Alert{}, getErr
	}
	return current, conflict(current, target)
}

func (r *PostgresAlertsRepository) AcknowledgeAlert(ctx context.Context, alertID, userID string, at time.Time) (domain.Alert, error) {
	return r.transition(ctx, alertID, domain.AlertStatusAcknowledged,
		`status_code = 'ACKNOWLEDGED', acknowledged_at = $3, acknowledged_by_user_id = $4`,
		at, userID)
}

func (r *PostgresAlertsRepository) ResolveAlert(ctx context.Context, alertID, userID string, at time.Time) (domain.Alert, error) {
	return r.transition(ctx, alertID, domain.AlertStatusResolved,
		`status_code = 'RESOLVED', resolved_at = $3, resolved_by_user_id = $4`,
		at, userID)
}

func (r *PostgresAlertsRepository) CloseAlert(ctx context.Context, alertID string) (domain.Alert, error) {
	return r.transition(ctx, alertID, domain.AlertStatusClosed, `status_code = 'CLOSED'`)
}

// MarkFalsePositive 误报标记
// 先锁告警行，再检查是否已有真值标注；CreateLabel 锁同一行，两者串行
func (r *PostgresAlertsRepository) MarkFalsePositive(ctx context.Context, alertID, reason string, at time.Time) (domain.Alert, error) {
	if alertID == "" {
		return domain.Alert{}, domain.NewFailure(domain.KindValidation, "alert_id is required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanAlert(tx.QueryRowContext(ctx, `SELECT`+alertColumns+`
		FROM alerts
		WHERE id = $1
		FOR UPDATE`, alertID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Alert{}, notFound("alert", alertID)
		}
		return domain.Alert{}, fmt.Errorf("failed to lock alert: %w", err)
	}
	// 复用领域规则生成一致的冲突信息
	if _, err := current.MarkFalsePositive(reason, at); err != nil {
		return current, err
	}

	var labeled bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ground_truth_labels WHERE alert_id = $1)`, alertID,
	).Scan(&labeled); err != nil {
		return domain.Alert{}, fmt.Errorf("failed to check ground truth label: %w", err)
	}
	if labeled {
		return current, domain.Failuref(domain.KindStateConflict, "alert %s: already validated as true positive", alertID)
	}

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	a, err := scanAlert(tx.QueryRowContext(ctx, `
		UPDATE alerts
		SET false_positive = TRUE, false_positive_reason = $2, false_positive_at = $3
		WHERE id = $1
		RETURNING`+alertColumns, alertID, reasonArg, at))
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to mark false positive: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Alert{}, fmt.Errorf("failed to commit false positive: %w", err)
	}
	return a, nil
}

// windowClause 构建时间窗口条件（边界包含）
func windowClause(column string, w domain.Window, args *[]any) string {
	var where []string
	if w.Start != nil {
		*args = append(*args, *w.Start)
		where = append(where, fmt.Sprintf("%s >= $%d", column, len(*args)))
	}
	if w.End != nil {
		*args = append(*args, *w.End)
		where = append(where, fmt.Sprintf("%s <= $%d", column, len(*args)))
	}
	if len(where) == 0 {
		return ""
	}
	return " AND " + strings.Join(where, " AND ")
}

func (r *PostgresAlertsRepository) CountFalsePositives(ctx context.Context, w domain.Window) (int, error) {
	var args []any
	// 只统计模型产生的告警，与 CountTruePositives 的 AI_MODEL 口径一致
	query := `SELECT COUNT(*) FROM alerts
		WHERE false_positive
		  AND created_by_model_id IS NOT NULL AND created_by_model_id <> ''` + windowClause("false_positive_at", w, &args)
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count false positives: %w", err)
	}
	return n, nil
}
