package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadenza/backend/internal/model"
)

// RequestFilter 代课请求列表过滤条件，空字段不参与过滤
type RequestFilter struct {
	AbsenceID           string
	SubstituteTeacherID string
	Status              string
}

// RequestProgress 某缺勤下代课请求的进度统计
type RequestProgress struct {
	Total    int64
	Awaiting int64
	Approved int64
}

// SubstitutionRequestRepository 代课请求数据访问接口
type SubstitutionRequestRepository interface {
	BatchCreate(ctx context.Context, requests []model.SubstitutionRequest) error
	GetByID(ctx context.Context, id string) (*model.SubstitutionRequest, error)
	// GetByIDForUpdate 仅锁定本行，须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.SubstitutionRequest, error)
	// ListByGroupForUpdate 按 request_id 顺序锁定广播组全部请求，固定加锁顺序避免死锁
	ListByGroupForUpdate(ctx context.Context, groupID string) ([]model.SubstitutionRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.SubstitutionRequest, error)
	// UpdateStatus 状态 CAS：仅当当前状态为 from 时迁移到 to，返回是否命中
	UpdateStatus(ctx context.Context, id, from, to string, at time.Time, operatorID string) (bool, error)
	// CancelSiblings 将广播组内除 exceptID 外仍待确认的请求置为 cancelled，返回被取消的 ID
	CancelSiblings(ctx context.Context, groupID, exceptID string, at time.Time, operatorID string) ([]string, error)
	Progress(ctx context.Context, absenceID string) (*RequestProgress, error)
}

type substitutionRequestRepo struct {
	db *gorm.DB
}

func NewSubstitutionRequestRepo(db *gorm.DB) SubstitutionRequestRepository {
	return &substitutionRequestRepo{db: db}
}

func (r *substitutionRequestRepo) BatchCreate(ctx context.Context, requests []model.SubstitutionRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&requests).Error
}

func (r *substitutionRequestRepo) GetByID(ctx context.Context, id string) (*model.SubstitutionRequest, error) {
	var req model.SubstitutionRequest
	err := r.db.WithContext(ctx).
		Preload("Lesson").
		Preload("SubstituteTeacher").
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *substitutionRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.SubstitutionRequest, error) {
	var req model.SubstitutionRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *substitutionRequestRepo) ListByGroupForUpdate(ctx context.Context, groupID string) ([]model.SubstitutionRequest, error) {
	var reqs []model.SubstitutionRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("broadcast_group_id = ?", groupID).
		Order("request_id ASC").
		Find(&reqs).Error
	return reqs, err
}

func (r *substitutionRequestRepo) List(ctx context.Context, filter RequestFilter) ([]model.SubstitutionRequest, error) {
	var reqs []model.SubstitutionRequest
	db := r.db.WithContext(ctx).
		Preload("Lesson").
		Preload("SubstituteTeacher")
	if filter.AbsenceID != "" {
		db = db.Where("absence_id = ?", filter.AbsenceID)
	}
	if filter.SubstituteTeacherID != "" {
		db = db.Where("substitute_teacher_id = ?", filter.SubstituteTeacherID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	err := db.Order("created_at ASC, request_id ASC").Find(&reqs).Error
	return reqs, err
}

func (r *substitutionRequestRepo) UpdateStatus(ctx context.Context, id, from, to string, at time.Time, operatorID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.SubstitutionRequest{}).
		Where("request_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":      to,
			"resolved_at": at,
			"updated_at":  at,
			"updated_by":  operatorID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *substitutionRequestRepo) CancelSiblings(ctx context.Context, groupID, exceptID string, at time.Time, operatorID string) ([]string, error) {
	var cancelled []model.SubstitutionRequest
	err := r.db.WithContext(ctx).
		Model(&cancelled).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "request_id"}}}).
		Where("broadcast_group_id = ? AND request_id <> ? AND status = ?", groupID, exceptID, model.RequestStatusAwaiting).
		Updates(map[string]interface{}{
			"status":      model.RequestStatusCancelled,
			"resolved_at": at,
			"updated_at":  at,
			"updated_by":  operatorID,
		}).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cancelled))
	for _, c := range cancelled {
		ids = append(ids, c.RequestID)
	}
	return ids, nil
}

func (r *substitutionRequestRepo) Progress(ctx context.Context, absenceID string) (*RequestProgress, error) {
	var p RequestProgress
	err := r.db.WithContext(ctx).
		Model(&model.SubstitutionRequest{}).
		Select(
			"COUNT(*) AS total, "+
				"COUNT(*) FILTER (WHERE status = ?) AS awaiting, "+
				"COUNT(*) FILTER (WHERE status = ?) AS approved",
			model.RequestStatusAwaiting, model.RequestStatusApproved,
		).
		Where("absence_id = ?", absenceID).
		Scan(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
