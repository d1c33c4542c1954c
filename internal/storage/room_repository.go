package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"meandu-go/internal/models"
)

// RoomRepository 定义了房间数据操作的接口。
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Room, error)
}

type gormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建一个新的基于 GORM 的 RoomRepository。
func NewGormRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

func (r *gormRoomRepository) Create(ctx context.Context, room *models.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *gormRoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListByUser 返回用户创建的房间，按创建时间排序。
func (r *gormRoomRepository) ListByUser(ctx context.Context, userID string) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rooms).Error
	return rooms, err
}
