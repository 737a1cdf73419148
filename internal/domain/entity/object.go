// Package entity 定义领域实体
package entity

// StoryObject 道具/物品
// CurrentOwner 与 CurrentLocation 分别保存角色 ID 与地点 ID
type StoryObject struct {
	Model
	StoryID         *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	StoryWorldID    *string `json:"story_world_id,omitempty" gorm:"type:varchar(64);index"`
	Name            string  `json:"name" gorm:"type:varchar(255);index;not null"`
	Description     string  `json:"description,omitempty" gorm:"type:text"`
	ObjectType      string  `json:"object_type,omitempty" gorm:"type:varchar(50)"`
	Significance    string  `json:"significance,omitempty" gorm:"type:text"`
	CurrentOwner    *string `json:"current_owner,omitempty" gorm:"type:varchar(64)"`
	CurrentLocation *string `json:"current_location,omitempty" gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (StoryObject) TableName() string {
	return string(TableObjects)
}
