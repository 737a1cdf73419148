// Package entity 定义领域实体
package entity

// DefaultSceneCharacterImportance 场景角色默认重要性
const DefaultSceneCharacterImportance = "secondary"

// Scene 场景
type Scene struct {
	Model
	StoryID        *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Title          string  `json:"title" gorm:"type:varchar(255);index;not null"`
	Content        string  `json:"content,omitempty" gorm:"type:text"`
	Summary        string  `json:"summary,omitempty" gorm:"type:text"`
	SequenceNumber int     `json:"sequence_number" gorm:"index"`
	SceneType      string  `json:"scene_type,omitempty" gorm:"type:varchar(50)"`
	Status         string  `json:"status,omitempty" gorm:"type:varchar(50)"`
}

// TableName 指定表名
func (Scene) TableName() string {
	return string(TableScenes)
}

// SceneCharacter 场景-角色关联
type SceneCharacter struct {
	Model
	SceneID     string `json:"scene_id" gorm:"type:varchar(64);index;not null"`
	CharacterID string `json:"character_id" gorm:"type:varchar(64);index;not null"`
	Importance  string `json:"importance" gorm:"type:varchar(50);default:'secondary'"`
}

// TableName 指定表名
func (SceneCharacter) TableName() string {
	return string(TableSceneCharacters)
}

// StoryQuestion 故事悬念/问题
type StoryQuestion struct {
	Model
	StoryID           *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Question          string  `json:"question" gorm:"type:text;not null"`
	Description       string  `json:"description,omitempty" gorm:"type:text"`
	Status            string  `json:"status,omitempty" gorm:"type:varchar(50)"`
	OriginSceneID     *string `json:"origin_scene_id,omitempty" gorm:"type:varchar(64)"`
	ResolutionSceneID *string `json:"resolution_scene_id,omitempty" gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (StoryQuestion) TableName() string {
	return string(TableStoryQuestions)
}
