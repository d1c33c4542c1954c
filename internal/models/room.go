package models

import (
	"meandu-go/internal/imtypes"
)

// Room 代表一个聊天房间。
type Room struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID      string `gorm:"index;type:varchar(64);not null" json:"user"` // room owner
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	BaseModel
}

// TableName 指定 Room 模型的表名。
func (Room) TableName() string {
	return "rooms"
}

// ToWire converts the row to its REST shape.
func (r Room) ToWire() imtypes.Room {
	return imtypes.Room{
		ID:          r.ID,
		User:        r.UserID,
		Name:        r.Name,
		Description: r.Description,
	}
}
