package chat

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ListCustomers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := r.db.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetCustomer(ctx context.Context, userID string) (*Customer, error) {
	var c Customer
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) UpsertCustomer(ctx context.Context, c *Customer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "phone_number"}),
		}).
		Create(c).Error
}

func (r *Repo) UpdateAgentEnabled(ctx context.Context, userID string, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&Customer{}).
		Where("user_id = ?", userID).
		Update("agent_enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) SessionIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&SessionMapping{}).
		Where("user_id = ?", userID).
		Pluck("session_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) EnsureSession(ctx context.Context, sessionID, userID string) error {
	return r.db.WithContext(ctx).
		Where(SessionMapping{SessionID: sessionID}).
		FirstOrCreate(&SessionMapping{SessionID: sessionID, UserID: userID}).Error
}

func (r *Repo) CustomerBySessionID(ctx context.Context, sessionID string) (*Customer, error) {
	var m SessionMapping
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return r.GetCustomer(ctx, m.UserID)
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns every message across the session set in ASC id order.
func (r *Repo) ListMessages(ctx context.Context, sessionIDs []string) ([]Message, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListPageBefore returns the newest page of messages strictly older than
// beforeID, in ASC id order.
func (r *Repo) ListPageBefore(ctx context.Context, sessionIDs []string, beforeID uint64, limit int) ([]Message, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	var desc []Message
	if err := r.db.WithContext(ctx).
		Where("session_id IN ? AND id < ?", sessionIDs, beforeID).
		Order("id DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}
