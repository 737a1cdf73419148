// Package entity 定义领域实体
package entity

// Plotline 情节线
type Plotline struct {
	Model
	StoryID           *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Title             string  `json:"title" gorm:"type:varchar(255);index;not null"`
	Description       string  `json:"description,omitempty" gorm:"type:text"`
	PlotlineType      string  `json:"plotline_type,omitempty" gorm:"type:varchar(50)"`
	StartingEventID   *string `json:"starting_event_id,omitempty" gorm:"type:varchar(64)"`
	ClimaxEventID     *string `json:"climax_event_id,omitempty" gorm:"type:varchar(64)"`
	ResolutionEventID *string `json:"resolution_event_id,omitempty" gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (Plotline) TableName() string {
	return string(TablePlotlines)
}

// PlotlineEvent 情节线-事件关联
type PlotlineEvent struct {
	Model
	PlotlineID string `json:"plotline_id" gorm:"type:varchar(64);index;not null"`
	EventID    string `json:"event_id" gorm:"type:varchar(64);index;not null"`
}

// TableName 指定表名
func (PlotlineEvent) TableName() string {
	return string(TablePlotlineEvents)
}

// PlotlineCharacter 情节线-角色关联
type PlotlineCharacter struct {
	Model
	PlotlineID  string `json:"plotline_id" gorm:"type:varchar(64);index;not null"`
	CharacterID string `json:"character_id" gorm:"type:varchar(64);index;not null"`
}

// TableName 指定表名
func (PlotlineCharacter) TableName() string {
	return string(TablePlotlineCharacters)
}
