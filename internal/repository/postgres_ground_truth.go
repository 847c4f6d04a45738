package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"heartguard-alerts/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const labelColumns = `
	id,
	patient_id,
	event_type_code,
	onset,
	offset_at,
	annotated_by_user_id,
	annotated_by_user_name,
	source,
	note,
	alert_id,
	created_at,
	updated_at`

// PostgresGroundTruthRepository 真值标注 Repository 实现（只 INSERT，不 UPDATE/DELETE）
type PostgresGroundTruthRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresGroundTruthRepository(db *sql.DB, logger *zap.Logger) *PostgresGroundTruthRepository {
	return &PostgresGroundTruthRepository{db: db, logger: logger}
}

var _ GroundTruthRepository = (*PostgresGroundTruthRepository)(nil)

func scanLabel(row rowScanner) (domain.GroundTruthLabel, error) {
	var (
		p              domain.GroundTruthParams
		eventType, src string
		offset         sql.NullTime
		alertID        sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.PatientID,
		&eventType,
		&p.Onset,
		&offset,
		&p.AnnotatedByUserID,
		&p.AnnotatedByUserName,
		&src,
		&p.Note,
		&alertID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	p.EventType = domain.EventType(eventType)
	p.Source = domain.GroundTruthSource(src)
	p.OffsetAt = nullTime(offset)
	p.AlertID = alertID.String
	return domain.NewGroundTruthLabel(p)
}

// CreateLabel 创建标注；alert_id 上的唯一约束保证一个告警最多一条标注
// 关联告警的标注先锁告警行（与 MarkFalsePositive 串行），已标误报的告警不能再有标注
func (r *PostgresGroundTruthRepository) CreateLabel(ctx context.Context, label domain.GroundTruthLabel) error {
	if label.IsZero() {
		return domain.NewFailure(domain.KindValidation, "label is required")
	}
	p := label.Params()
	if p.AlertID == "" {
		return r.insertLabel(ctx, r.db, p)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var falsePositive bool
	err = tx.QueryRowContext(ctx,
		`SELECT false_positive FROM alerts WHERE id = $1 FOR UPDATE`, p.AlertID,
	).Scan(&falsePositive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("alert", p.AlertID)
		}
		return fmt.Errorf("failed to lock alert: %w", err)
	}
	if falsePositive {
		return domain.Failuref(domain.KindStateConflict, "alert %s: already marked false positive", p.AlertID)
	}
	if err := r.insertLabel(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ground truth label: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresGroundTruthRepository) insertLabel(ctx context.Context, db execer, p domain.GroundTruthParams) error {
	var alertID any
	if p.AlertID != "" {
		alertID = p.AlertID
	}
	query := `
		INSERT INTO ground_truth_labels (` + labelColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := db.ExecContext(ctx, query,
		p.ID,
		p.PatientID,
		string(p.EventType),
		p.Onset,
		p.OffsetAt,
		p.AnnotatedByUserID,
		p.AnnotatedByUserName,
		string(p.Source),
		p.Note,
		alertID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			if p.AlertID != "" {
				return domain.Failuref(domain.KindStateConflict, "alert %s already has a ground truth label", p.AlertID)
			}
			return domain.Failuref(domain.KindStateConflict, "ground truth label %s already exists", p.ID)
		}
		return fmt.Errorf("failed to create ground truth label: %w", err)
	}
	return nil
}

func (r *PostgresGroundTruthRepository) ListLabelsByPatient(ctx context.Context, patientID string) ([]domain.GroundTruthLabel, error) {
	if patientID == "" {
		return nil, domain.NewFailure(domain.KindValidation, "patient_id is required")
	}
	query := `SELECT` + labelColumns + `
		FROM ground_truth_labels
		WHERE patient_id = $1
		ORDER BY onset DESC`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ground truth labels: %w", err)
	}
	defer rows.Close()

	out := []domain.GroundTruthLabel{}
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			r.logger.Warn("Skipping unreadable ground truth row", zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ground truth labels: %w", err)
	}
	return out, nil
}

func (r *PostgresGroundTruthRepository) GetLabelByAlert(ctx context.Context, alertID string) (domain.GroundTruthLabel, error) {
	query := `SELECT` + labelColumns + `
		FROM ground_truth_labels
		WHERE alert_id = $1`
	l, err := scanLabel(r.db.QueryRowContext(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GroundTruthLabel{}, notFound("ground truth label for alert", alertID)
		}
		return domain.GroundTruthLabel{}, fmt.Errorf("failed to get ground truth label: %w", err)
	}
	return l, nil
}

func (r *PostgresGroundTruthRepository) CountTruePositives(ctx context.Context, w domain.Window) (int, error) {
	args := []any{string(domain.SourceAIModel)}
	query := `SELECT COUNT(*) FROM ground_truth_labels
		WHERE source = $1 AND alert_id IS NOT NULL` + windowClause("created_at", w, &args)
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count true positives: %w", err)
	}
	return n, nil
}
