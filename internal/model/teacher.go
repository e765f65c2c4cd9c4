package model

import (
	"strings"

	"github.com/lib/pq"
)

// Teacher 教师表，对应 teachers
type Teacher struct {
	TeacherID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"teacher_id"`
	UserID      string         `gorm:"type:uuid;not null"                             json:"user_id"`
	Name        string         `gorm:"type:varchar(100);not null"                     json:"name"`
	Instruments pq.StringArray `gorm:"type:text[];not null;default:'{}'"              json:"instruments"`
	IsActive    bool           `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (Teacher) TableName() string { return "teachers" }

// Teaches 是否可教授该乐器（忽略大小写与首尾空白）
func (t *Teacher) Teaches(instrument string) bool {
	want := strings.ToLower(strings.TrimSpace(instrument))
	for _, i := range t.Instruments {
		if strings.ToLower(strings.TrimSpace(i)) == want {
			return true
		}
	}
	return false
}
