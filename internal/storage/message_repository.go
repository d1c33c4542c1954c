package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"meandu-go/internal/models"
)

// MessageRepository 定义了房间消息数据操作的接口。
type MessageRepository interface {
	Create(ctx context.Context, message *models.RoomMessage) error
	GetByMessageID(ctx context.Context, messageID string) (*models.RoomMessage, error)
	// ListByRoom returns the most recent limit messages of a room, oldest
	// first. limit <= 0 returns all of them.
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.RoomMessage, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create 在数据库中创建一条新的消息记录。
func (r *gormMessageRepository) Create(ctx context.Context, message *models.RoomMessage) error {
	err := r.db.WithContext(ctx).Create(message).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *gormMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*models.RoomMessage, error) {
	var message models.RoomMessage
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByRoom 按到达顺序返回房间消息。
func (r *gormMessageRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*models.RoomMessage, error) {
	var messages []*models.RoomMessage
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}

	// newest-first from the query, callers want arrival order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
