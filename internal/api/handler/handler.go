package handler

import "cadenza/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Substitution *SubstitutionHandler
	Teacher      *TeacherHandler
	Absence      *AbsenceHandler
	Notification *NotificationHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Substitution: NewSubstitutionHandler(svc.Substitution),
		Teacher:      NewTeacherHandler(svc.Availability),
		Absence:      NewAbsenceHandler(svc.Absence),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export, svc.Calendar),
	}
}
