// Package entity 定义领域实体
package entity

// 事件相关默认值
const (
	DefaultCharacterEventImportance = 5
	DefaultExperienceType           = "active"
	DefaultCharacterSequenceNumber  = 0
	DefaultDependencyType           = "chronological"
	DefaultDependencyStrength       = 5
)

// Event 故事事件（时间轴节点）
// involved_characters 只在导入时使用，不落库
type Event struct {
	Model
	StoryID           *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Title             string  `json:"title" gorm:"type:varchar(255);index;not null"`
	Description       string  `json:"description,omitempty" gorm:"type:text"`
	SequenceNumber    int     `json:"sequence_number" gorm:"index"`
	ChronologicalTime string  `json:"chronological_time,omitempty" gorm:"type:varchar(255)"`
	EventType         string  `json:"event_type,omitempty" gorm:"type:varchar(50)"`
}

// TableName 指定表名
func (Event) TableName() string {
	return string(TableEvents)
}

// CharacterEvent 角色-事件关联
// CharacterSequenceNumber 为角色视角的事件顺序，与事件全局 SequenceNumber 无关
type CharacterEvent struct {
	Model
	CharacterID             string `json:"character_id" gorm:"type:varchar(64);index;not null"`
	EventID                 string `json:"event_id" gorm:"type:varchar(64);index;not null"`
	Importance              int    `json:"importance" gorm:"default:5"`
	ExperienceType          string `json:"experience_type" gorm:"type:varchar(50);default:'active'"`
	CharacterSequenceNumber int    `json:"character_sequence_number" gorm:"default:0"`
}

// TableName 指定表名
func (CharacterEvent) TableName() string {
	return string(TableCharacterEvents)
}

// EventDependency 事件依赖（有向边，前驱 -> 后继）
type EventDependency struct {
	Model
	PredecessorEventID string `json:"predecessor_event_id" gorm:"type:varchar(64);index;not null"`
	SuccessorEventID   string `json:"successor_event_id" gorm:"type:varchar(64);index;not null"`
	DependencyType     string `json:"dependency_type" gorm:"type:varchar(50);default:'chronological'"`
	Strength           int    `json:"strength" gorm:"default:5"`
	Description        string `json:"description,omitempty" gorm:"type:text"`
}

// TableName 指定表名
func (EventDependency) TableName() string {
	return string(TableEventDependencies)
}
