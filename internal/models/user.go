package models

import "time"

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName  string    `gorm:"type:varchar(128)" json:"display_name"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Role struct {
	UserID uint64 `gorm:"primaryKey" json:"user_id"`
	Role   string `gorm:"type:varchar(16);not null" json:"role"`
}

func (Role) TableName() string { return "user_roles" }
