package admin

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smartys-dev/chatdesk/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UserByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the user and their role row in one transaction.
func (r *Repo) CreateUser(ctx context.Context, u *models.User, role string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return tx.Create(&models.Role{UserID: u.ID, Role: role}).Error
	})
}

// DeleteUser removes the user and their role row.
func (r *Repo) DeleteUser(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Role{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *Repo) RoleOf(ctx context.Context, userID uint64) (string, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&role).Error; err != nil {
		return "", err
	}
	return role.Role, nil
}

func (r *Repo) UpdatePassword(ctx context.Context, userID uint64, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) ListUsers(ctx context.Context) ([]UserRow, error) {
	var rows []UserRow
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.*, user_roles.role").
		Joins("LEFT JOIN user_roles ON user_roles.user_id = users.id").
		Order("users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) CreateInvitation(ctx context.Context, inv *Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *Repo) InvitationByID(ctx context.Context, id uint64) (*Invitation, error) {
	var inv Invitation
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) InvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	var inv Invitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) ListInvitations(ctx context.Context) ([]Invitation, error) {
	var out []Invitation
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) MarkInvitationUsed(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Invitation{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at).Error
}

func (r *Repo) DeleteInvitation(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Delete(&Invitation{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
