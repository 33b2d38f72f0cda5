package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Model is embedded by every tenant-owned row.
type Model struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (m *Model) Base() *Model { return m }

// Entity constrains P to be *T for a row type T that embeds Model.
type Entity[T any] interface {
	*T
	Base() *Model
}
