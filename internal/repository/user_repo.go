package repository

import (
	"context"

	"gorm.io/gorm"

	"cadenza/backend/internal/model"
)

// UserRepository 通知接收方查询
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByTeacherID 通过教师档案反查登录账号
	GetByTeacherID(ctx context.Context, teacherID string) (*model.User, error)
	// ListByRole 按角色列出账号，按创建时间升序；协调人兜底通知全部管理员时使用
	ListByRole(ctx context.Context, role string) ([]model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByTeacherID(ctx context.Context, teacherID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN teachers ON teachers.user_id = users.user_id").
		Where("teachers.teacher_id = ?", teacherID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at ASC, user_id ASC").
		Find(&users).Error
	return users, err
}
