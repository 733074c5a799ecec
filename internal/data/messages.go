package data

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	db *gorm.DB
}

// NewMessagesStore returns a MessagesStore using the provided handle.
func NewMessagesStore(db *gorm.DB) *MessagesStore {
	return &MessagesStore{db: db}
}

// SaveMessage inserts a message and returns the saved record. A zero
// CreatedAt is stamped with the current time.
func (m *MessagesStore) SaveMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Read = false
	if err := m.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, translate(err)
	}
	return msg, nil
}

// GetMessage finds a message by id.
func (m *MessagesStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var msg Message
	if err := m.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// ListInvolving returns every message sent or received by userID, newest
// first. This is the input of the conversation aggregator.
func (m *MessagesStore) ListInvolving(ctx context.Context, userID int64) ([]Message, error) {
	msgs := []Message{}
	err := m.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// GetMessageHistory returns recent messages between two users (ordered oldest→newest).
func (m *MessagesStore) GetMessageHistory(ctx context.Context, user1, user2 int64, limit int) ([]Message, error) {
	msgs := []Message{}
	err := m.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", user1, user2, user2, user1).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, 100, 1000)).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// newest first from the query; callers want chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead flips the read flag of a message addressed to receiverID. The
// flag never goes back to false; marking an already-read message is a no-op.
func (m *MessagesStore) MarkRead(ctx context.Context, id, receiverID int64) (*Message, error) {
	var msg Message
	err := m.db.WithContext(ctx).Where("id = ? AND receiver_id = ?", id, receiverID).First(&msg).Error
	if err != nil {
		return nil, translate(err)
	}
	if msg.Read {
		return &msg, nil
	}
	if err := m.db.WithContext(ctx).Model(&Message{}).Where("id = ?", id).Update("read", true).Error; err != nil {
		return nil, err
	}
	msg.Read = true
	return &msg, nil
}
