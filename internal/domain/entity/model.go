// Package entity 定义领域实体
package entity

import (
	"time"
)

// Model 所有表共享的主键与时间戳
type Model struct {
	ID        string     `json:"id" gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
