package repository

import (
	"context"

	"gorm.io/gorm"
)

// dateLayout DATE 列的参数格式
const dateLayout = "2006-01-02"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User                UserRepository
	Teacher             TeacherRepository
	Lesson              LessonRepository
	Absence             AbsenceRepository
	SubstitutionRequest SubstitutionRequestRepository
	LessonChangeLog     LessonChangeLogRepository
	Notification        NotificationRepository

	// Tx 事务入口；回调内的 Repository 所有操作共用同一个数据库事务
	Tx Transactor
}

// Transactor 事务执行器
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:                NewUserRepo(db),
		Teacher:             NewTeacherRepo(db),
		Lesson:              NewLessonRepo(db),
		Absence:             NewAbsenceRepo(db),
		SubstitutionRequest: NewSubstitutionRequestRepo(db),
		LessonChangeLog:     NewLessonChangeLogRepo(db),
		Notification:        NewNotificationRepo(db),
		Tx:                  &gormTransactor{db: db},
	}
}

type gormTransactor struct {
	db *gorm.DB
}

// InTx 在 db.Transaction 中执行 fn，fn 返回错误时整体回滚
func (t *gormTransactor) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
