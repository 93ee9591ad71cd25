// file: internals/features/users/model/user_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
  users = identity record as seen by payments/tenancy
  - issuance/session handling lives outside this service
*/

type User struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	UserEmail    string    `gorm:"column:user_email;size:255;index:idx_users_email" json:"user_email"`
	UserFullName string    `gorm:"column:user_full_name;size:160" json:"user_full_name"`
	UserPhone    string    `gorm:"column:user_phone;size:20" json:"user_phone"`

	UserCreatedAt time.Time `gorm:"column:user_created_at;autoCreateTime" json:"user_created_at"`
	UserUpdatedAt time.Time `gorm:"column:user_updated_at;autoUpdateTime" json:"user_updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

type UserRole struct {
	UserRoleID     uuid.UUID `gorm:"column:user_role_id;type:uuid;primaryKey" json:"user_role_id"`
	UserRoleUserID uuid.UUID `gorm:"column:user_role_user_id;type:uuid;not null;uniqueIndex:uq_user_role,priority:1" json:"user_role_user_id"`
	UserRoleName   string    `gorm:"column:user_role_name;size:32;not null;uniqueIndex:uq_user_role,priority:2" json:"user_role_name"`

	UserRoleAssignedAt time.Time `gorm:"column:user_role_assigned_at;autoCreateTime" json:"user_role_assigned_at"`
}

func (UserRole) TableName() string { return "user_roles" }

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.UserRoleID == uuid.Nil {
		r.UserRoleID = uuid.New()
	}
	return nil
}
