// Package entity 定义领域实体
package entity

// CharacterRole 角色定位
type CharacterRole string

const (
	CharacterRoleProtagonist CharacterRole = "protagonist"
	CharacterRoleAntagonist  CharacterRole = "antagonist"
	CharacterRoleSupporting  CharacterRole = "supporting"
)

// Character 角色
type Character struct {
	Model
	StoryID      *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	StoryWorldID *string `json:"story_world_id,omitempty" gorm:"type:varchar(64);index"`
	Name         string  `json:"name" gorm:"type:varchar(255);index;not null"`
	Role         string  `json:"role,omitempty" gorm:"type:varchar(50)"`
	Description  string  `json:"description,omitempty" gorm:"type:text"`
	Background   string  `json:"background,omitempty" gorm:"type:text"`
	Personality  string  `json:"personality,omitempty" gorm:"type:text"`
	Motivation   string  `json:"motivation,omitempty" gorm:"type:text"`
	Appearance   string  `json:"appearance,omitempty" gorm:"type:text"`
	Age          string  `json:"age,omitempty" gorm:"type:varchar(50)"`
}

// TableName 指定表名
func (Character) TableName() string {
	return string(TableCharacters)
}
