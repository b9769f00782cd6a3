package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username           string   `gorm:"uniqueIndex;size:64"`
	PasswordHash       string   `gorm:"size:255"`
	IsAdmin            bool     `gorm:"default:false"`
	MustChangePassword bool     `gorm:"default:false"`
	Resumes            []Resume `gorm:"constraint:OnDelete:CASCADE"`
	Annexes            []Annexe `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示用户创建的简历。Content 保存完整的 resumeData，
// 标题、slug、公开状态与外观同时落在独立列上便于查询。
type Resume struct {
	ID          string         `gorm:"primaryKey;size:36"`
	UserID      uint           `gorm:"index"`
	User        User           `gorm:"constraint:OnDelete:CASCADE"`
	Title       string         `gorm:"size:255"`
	Slug        *string        `gorm:"uniqueIndex;size:100"`
	Public      bool           `gorm:"index;default:false"`
	Template    string         `gorm:"size:64"`
	AccentColor string         `gorm:"size:16"`
	Content     datatypes.JSON `gorm:"type:jsonb"`
	FinalPDFKey string         `gorm:"size:512"`
	FinalPDFAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *Resume) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Annexe 是用户上传的 PDF 附件，文件本体在对象存储中。
type Annexe struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    uint   `gorm:"index"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Title     string `gorm:"size:255"`
	FileName  string `gorm:"size:255"`
	ObjectKey string `gorm:"size:512"`
	Size      int64
	CreatedAt time.Time
}

func (a *Annexe) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Models 返回需要迁移的全部模型。
func Models() []any {
	return []any{&User{}, &Resume{}, &Annexe{}}
}
