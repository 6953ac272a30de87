package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartys-dev/chatdesk/internal/auth"
	"github.com/smartys-dev/chatdesk/internal/models"
)

var (
	ErrSelfDelete        = errors.New("cannot delete your own account")
	ErrEmailTaken        = errors.New("a user with this email already exists")
	ErrInvalidInvitation = errors.New("invitation is invalid, used or expired")
	ErrBadCredentials    = errors.New("invalid email or password")
	ErrInvitationClosed  = errors.New("invitation already used or expired")
)

// Mailer sends account emails. Failures are treated as degraded delivery,
// never as a failed operation.
type Mailer interface {
	SendInvitation(to, inviteLink, inviterName string) error
	SendPasswordReset(to, resetLink string) error
}

// ResetTokens is the short-lived password reset token store.
type ResetTokens interface {
	SetResetToken(ctx context.Context, token string, userID uint64, ttl time.Duration) error
	GetResetToken(ctx context.Context, token string) (uint64, error)
	DeleteResetToken(ctx context.Context, token string) error
}

const resetTokenTTL = 30 * time.Minute

// Service owns user accounts and the invitation flow.
type Service struct {
	repo    *Repo
	mailer  Mailer
	resets  ResetTokens
	baseURL string
}

func NewService(repo *Repo, mailer Mailer, resets ResetTokens, baseURL string) *Service {
	return &Service{
		repo:    repo,
		mailer:  mailer,
		resets:  resets,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Service) inviteLink(token string) string {
	return s.baseURL + "/signup?invitation=" + url.QueryEscape(token)
}

// InviteResult reports what Invite managed to do. EmailSent false with a
// nil error means the invitation exists but the admin has to pass the link
// on by hand.
type InviteResult struct {
	Invitation Invitation `json:"invitation"`
	InviteLink string     `json:"invite_link"`
	EmailSent  bool       `json:"email_sent"`
}

// Invite creates an invitation for email and tries to mail the link. The
// invitation is valid for seven days.
func (s *Service) Invite(ctx context.Context, actingUserID uint64, email string) (*InviteResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if _, err := s.repo.UserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	inv := &Invitation{
		Email:     email,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(InvitationTTL),
		InvitedBy: actingUserID,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	link := s.inviteLink(inv.Token)
	res := &InviteResult{Invitation: *inv, InviteLink: link}

	inviter := ""
	if u, err := s.repo.UserByID(ctx, actingUserID); err == nil {
		inviter = u.DisplayName
	}
	if err := s.mailer.SendInvitation(email, link, inviter); err != nil {
		log.Printf("invitation email failed to=%s err=%v", email, err)
	} else {
		res.EmailSent = true
	}
	return res, nil
}

// Resend mails an existing invitation again, same token, same expiry. A
// used or expired invitation cannot be resent.
func (s *Service) Resend(ctx context.Context, actingUserID uint64, invitationID uint64) (*InviteResult, error) {
	inv, err := s.repo.InvitationByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !inv.Redeemable(time.Now().UTC()) {
		return nil, ErrInvitationClosed
	}

	link := s.inviteLink(inv.Token)
	res := &InviteResult{Invitation: *inv, InviteLink: link}

	inviter := ""
	if u, err := s.repo.UserByID(ctx, actingUserID); err == nil {
		inviter = u.DisplayName
	}
	if err := s.mailer.SendInvitation(inv.Email, link, inviter); err != nil {
		log.Printf("invitation email failed to=%s err=%v", inv.Email, err)
	} else {
		res.EmailSent = true
	}
	return res, nil
}

func (s *Service) Revoke(ctx context.Context, invitationID uint64) error {
	return s.repo.DeleteInvitation(ctx, invitationID)
}

func (s *Service) ListInvitations(ctx context.Context) ([]Invitation, error) {
	return s.repo.ListInvitations(ctx)
}

// ValidateToken returns the invitation behind token if it is still
// redeemable: token matches, never used, not expired.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Invitation, error) {
	inv, err := s.repo.InvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInvitation
		}
		return nil, err
	}
	if !inv.Redeemable(time.Now().UTC()) {
		return nil, ErrInvalidInvitation
	}
	return inv, nil
}

// Signup registers a new account. The very first account needs no
// invitation and becomes the admin; everyone after that must redeem a
// valid token, and the account email is the invited email.
func (s *Service) Signup(ctx context.Context, token, displayName, password string) (*models.User, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	var (
		email string
		role  = models.RoleUser
		inv   *Invitation
	)
	if count == 0 {
		// bootstrap: the token field carries the email for the first account
		email = strings.ToLower(strings.TrimSpace(token))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("invalid email %q", email)
		}
		role = models.RoleAdmin
	} else {
		inv, err = s.ValidateToken(ctx, token)
		if err != nil {
			return nil, err
		}
		email = inv.Email
	}

	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &models.User{Email: email, DisplayName: displayName, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, u, role); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if inv != nil {
		if err := s.repo.MarkInvitationUsed(ctx, inv.ID, time.Now().UTC()); err != nil {
			log.Printf("mark invitation used failed id=%d err=%v", inv.ID, err)
		}
	}
	return u, nil
}

// Authenticate checks the credentials and returns the account. The error
// never says which half was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

func (s *Service) User(ctx context.Context, id uint64) (*models.User, error) {
	return s.repo.UserByID(ctx, id)
}

func (s *Service) RoleOf(ctx context.Context, id uint64) (string, error) {
	return s.repo.RoleOf(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]UserRow, error) {
	return s.repo.ListUsers(ctx)
}

// DeleteUser removes the target account. The authenticated admin can never
// delete themselves, whatever id the request claims.
func (s *Service) DeleteUser(ctx context.Context, actingUserID, targetID uint64) error {
	if actingUserID == targetID {
		return ErrSelfDelete
	}
	return s.repo.DeleteUser(ctx, targetID)
}

// RequestPasswordReset issues a 30 minute token and mails the link. An
// unknown email gets the same nil response so the endpoint leaks nothing.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token := uuid.NewString()
	if err := s.resets.SetResetToken(ctx, token, u.ID, resetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(u.Email, link); err != nil {
		log.Printf("reset email failed to=%s err=%v", u.Email, err)
	}
	return nil
}

// ConfirmPasswordReset redeems the token and sets the new password. The
// token is single use.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	userID, err := s.resets.GetResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("invalid or expired reset token")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.resets.DeleteResetToken(ctx, token)
}
