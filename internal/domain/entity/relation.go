// Package entity 定义领域实体
package entity

import "strings"

// RelationshipType 角色关系类型
type RelationshipType string

const (
	RelationshipFamily       RelationshipType = "family"
	RelationshipFriend       RelationshipType = "friend"
	RelationshipAlly         RelationshipType = "ally"
	RelationshipEnemy        RelationshipType = "enemy"
	RelationshipRomantic     RelationshipType = "romantic"
	RelationshipProfessional RelationshipType = "professional"
	RelationshipOther        RelationshipType = "other"
)

// 关系默认值
const (
	DefaultRelationshipType      = RelationshipOther
	DefaultRelationshipIntensity = 5
)

var relationshipTypes = map[RelationshipType]struct{}{
	RelationshipFamily:       {},
	RelationshipFriend:       {},
	RelationshipAlly:         {},
	RelationshipEnemy:        {},
	RelationshipRomantic:     {},
	RelationshipProfessional: {},
	RelationshipOther:        {},
}

// NormalizeRelationshipType 归一化关系类型，未知值归为 other
func NormalizeRelationshipType(raw string) RelationshipType {
	t := RelationshipType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := relationshipTypes[t]; ok {
		return t
	}
	return DefaultRelationshipType
}

// CharacterRelationship 角色关系
// 语义上无序，存储为 (character1_id, character2_id)
type CharacterRelationship struct {
	Model
	StoryID          *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Character1ID     string  `json:"character1_id" gorm:"type:varchar(64);index;not null"`
	Character2ID     string  `json:"character2_id" gorm:"type:varchar(64);index;not null"`
	RelationshipType string  `json:"relationship_type" gorm:"type:varchar(50);default:'other'"`
	Intensity        int     `json:"intensity" gorm:"default:5"`
	Description      string  `json:"description,omitempty" gorm:"type:text"`
}

// TableName 指定表名
func (CharacterRelationship) TableName() string {
	return string(TableCharacterRelationships)
}
