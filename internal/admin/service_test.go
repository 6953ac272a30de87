package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartys-dev/chatdesk/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Role{}, &Invitation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeMailer struct {
	mu      sync.Mutex
	invites []string
	resets  []string
	fail    bool
}

func (m *fakeMailer) SendInvitation(to, link, inviter string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites = append(m.invites, to+"|"+link)
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, link string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, to+"|"+link)
	return nil
}

type fakeResets struct {
	mu     sync.Mutex
	tokens map[string]uint64
}

func (f *fakeResets) SetResetToken(_ context.Context, token string, userID uint64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string]uint64{}
	}
	f.tokens[token] = userID
	return nil
}

func (f *fakeResets) GetResetToken(_ context.Context, token string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return 0, errors.New("not found")
	}
	return id, nil
}

func (f *fakeResets) DeleteResetToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func newTestService(t *testing.T) (*Service, *Repo, *fakeMailer, *fakeResets) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	mailer := &fakeMailer{}
	resets := &fakeResets{}
	return NewService(repo, mailer, resets, "https://desk.example.com"), repo, mailer, resets
}

func bootstrapAdmin(t *testing.T, svc *Service) *models.User {
	t.Helper()
	u, err := svc.Signup(context.Background(), "admin@example.com", "Admin", "sehr-geheim")
	if err != nil {
		t.Fatalf("bootstrap signup: %v", err)
	}
	return u
}

func TestFirstSignupBecomesAdmin(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	u := bootstrapAdmin(t, svc)
	role, err := repo.RoleOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != models.RoleAdmin {
		t.Fatalf("first user role = %q, want admin", role)
	}

	// second account cannot bootstrap
	if _, err := svc.Signup(ctx, "sneaky@example.com", "Sneaky", "sehr-geheim"); !errors.Is(err, ErrInvalidInvitation) {
		t.Fatalf("want ErrInvalidInvitation, got %v", err)
	}
}

func TestInviteAndSignup(t *testing.T) {
	svc, repo, mailer, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	res, err := svc.Invite(ctx, admin.ID, "Agent@Example.com")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if !res.EmailSent || len(mailer.invites) != 1 {
		t.Fatalf("invite email not sent: %+v", res)
	}
	if res.Invitation.Email != "agent@example.com" {
		t.Fatalf("email not normalized: %q", res.Invitation.Email)
	}

	u, err := svc.Signup(ctx, res.Invitation.Token, "Agent", "sehr-geheim")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "agent@example.com" {
		t.Fatalf("account email = %q", u.Email)
	}
	role, err := repo.RoleOf(ctx, u.ID)
	if err != nil || role != models.RoleUser {
		t.Fatalf("role = %q err = %v", role, err)
	}

	// the token is single use
	if _, err := svc.Signup(ctx, res.Invitation.Token, "Again", "sehr-geheim"); !errors.Is(err, ErrInvalidInvitation) {
		t.Fatalf("used token must be rejected, got %v", err)
	}
}

func TestInviteExistingEmailRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	admin := bootstrapAdmin(t, svc)

	if _, err := svc.Invite(context.Background(), admin.ID, "admin@example.com"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestInviteDegradesWhenMailFails(t *testing.T) {
	svc, _, mailer, _ := newTestService(t)
	admin := bootstrapAdmin(t, svc)
	mailer.fail = true

	res, err := svc.Invite(context.Background(), admin.ID, "agent@example.com")
	if err != nil {
		t.Fatalf("invite must survive mail failure: %v", err)
	}
	if res.EmailSent {
		t.Fatalf("EmailSent must be false")
	}
	if res.InviteLink == "" {
		t.Fatalf("raw link must still be returned")
	}
}

func TestExpiredInvitationRejected(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	bootstrapAdmin(t, svc)

	inv := &Invitation{
		Email:     "late@example.com",
		Token:     "tok-expired",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := repo.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.ValidateToken(ctx, "tok-expired"); !errors.Is(err, ErrInvalidInvitation) {
		t.Fatalf("expired but unused token must be rejected, got %v", err)
	}
	if _, err := svc.Resend(ctx, 1, inv.ID); !errors.Is(err, ErrInvitationClosed) {
		t.Fatalf("expired invitation must not be resendable, got %v", err)
	}
}

func TestResendKeepsToken(t *testing.T) {
	svc, _, mailer, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	res, err := svc.Invite(ctx, admin.ID, "agent@example.com")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	again, err := svc.Resend(ctx, admin.ID, res.Invitation.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if again.Invitation.Token != res.Invitation.Token {
		t.Fatalf("resend rotated the token")
	}
	if len(mailer.invites) != 2 {
		t.Fatalf("invite emails = %d, want 2", len(mailer.invites))
	}
}

func TestRevoke(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	res, err := svc.Invite(ctx, admin.ID, "agent@example.com")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.Revoke(ctx, res.Invitation.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, res.Invitation.Token); !errors.Is(err, ErrInvalidInvitation) {
		t.Fatalf("revoked token must be invalid, got %v", err)
	}
}

func TestDeleteUserGuardsSelf(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	res, err := svc.Invite(ctx, admin.ID, "agent@example.com")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	agent, err := svc.Signup(ctx, res.Invitation.Token, "Agent", "sehr-geheim")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("self delete must be blocked, got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin.ID, agent.ID); err != nil {
		t.Fatalf("delete other: %v", err)
	}
	if _, err := repo.UserByID(ctx, agent.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("agent still present: %v", err)
	}
	if err := svc.DeleteUser(ctx, admin.ID, 9999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want record not found, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	bootstrapAdmin(t, svc)

	if _, err := svc.Authenticate(ctx, "admin@example.com", "sehr-geheim"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "admin@example.com", "falsch"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "sehr-geheim"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mailer, resets := newTestService(t)
	ctx := context.Background()
	bootstrapAdmin(t, svc)

	if err := svc.RequestPasswordReset(ctx, "admin@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(mailer.resets) != 1 {
		t.Fatalf("reset emails = %d", len(mailer.resets))
	}
	// unknown email leaks nothing
	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(resets.tokens) != 1 {
		t.Fatalf("tokens = %d, want 1", len(resets.tokens))
	}

	var token string
	for tok := range resets.tokens {
		token = tok
	}
	if err := svc.ConfirmPasswordReset(ctx, token, "noch-geheimer"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "admin@example.com", "noch-geheimer"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	// single use
	if err := svc.ConfirmPasswordReset(ctx, token, "dritte-wahl"); err == nil {
		t.Fatalf("reused token must fail")
	}
}
