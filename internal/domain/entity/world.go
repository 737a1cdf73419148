// Package entity 定义领域实体
package entity

// StoryWorld 故事世界，按名称复用
type StoryWorld struct {
	Model
	Name        string `json:"name" gorm:"type:varchar(255);index;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	Genre       string `json:"genre,omitempty" gorm:"type:varchar(100)"`
}

// TableName 指定表名
func (StoryWorld) TableName() string {
	return string(TableStoryWorlds)
}

// Story 故事，导入的聚合根
type Story struct {
	Model
	StoryWorldID *string `json:"story_world_id,omitempty" gorm:"type:varchar(64);index"`
	Title        string  `json:"title" gorm:"type:varchar(255);index;not null"`
	Description  string  `json:"description,omitempty" gorm:"type:text"`
	StoryType    string  `json:"story_type,omitempty" gorm:"type:varchar(50)"`
	Genre        string  `json:"genre,omitempty" gorm:"type:varchar(100)"`
	Status       string  `json:"status,omitempty" gorm:"type:varchar(50)"`
}

// TableName 指定表名
func (Story) TableName() string {
	return string(TableStories)
}
