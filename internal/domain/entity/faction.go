// Package entity 定义领域实体
package entity

// Faction 势力/组织
type Faction struct {
	Model
	StoryID                *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	StoryWorldID           *string `json:"story_world_id,omitempty" gorm:"type:varchar(64);index"`
	Name                   string  `json:"name" gorm:"type:varchar(255);index;not null"`
	Description            string  `json:"description,omitempty" gorm:"type:text"`
	FactionType            string  `json:"faction_type,omitempty" gorm:"type:varchar(50)"`
	Ideology               string  `json:"ideology,omitempty" gorm:"type:text"`
	Goals                  string  `json:"goals,omitempty" gorm:"type:text"`
	Resources              string  `json:"resources,omitempty" gorm:"type:text"`
	LeaderCharacterID      *string `json:"leader_character_id,omitempty" gorm:"type:varchar(64);index"`
	HeadquartersLocationID *string `json:"headquarters_location_id,omitempty" gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (Faction) TableName() string {
	return string(TableFactions)
}
