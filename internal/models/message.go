package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

type Message struct {
	gorm.Model
	ConversationID uint         `gorm:"index;not null" json:"conversation_id"`
	Conversation   Conversation `json:"-"`
	SenderID       uint         `gorm:"not null" json:"sender_id"`
	Content        string       `gorm:"not null" json:"content"`
	MessageType    string       `gorm:"not null;default:'text'" json:"message_type"`
	Metadata       JSONMap      `gorm:"type:jsonb" json:"metadata"`
	IsDeleted      bool         `gorm:"not null;default:false" json:"is_deleted"`
}

// JSONMap is an opaque key/value payload stored as a json column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	return json.Unmarshal(data, m)
}
