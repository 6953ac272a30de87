package admin

import (
	"time"

	"github.com/smartys-dev/chatdesk/internal/models"
)

// InvitationTTL is how long an invitation link stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a pending signup grant. A user can only register while an
// unused, unexpired invitation exists for their email.
type Invitation struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string     `gorm:"type:varchar(255);index;not null" json:"email"`
	Token     string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	InvitedBy uint64     `json:"invited_by"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Invitation) TableName() string { return "invitations" }

func (i *Invitation) Redeemable(now time.Time) bool {
	return i.UsedAt == nil && i.ExpiresAt.After(now)
}

// UserRow is a user joined with their role, for the admin listing.
type UserRow struct {
	models.User
	Role string `json:"role"`
}
