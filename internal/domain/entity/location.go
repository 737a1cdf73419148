// Package entity 定义领域实体
package entity

// Location 地点，parent_location_id 构成树
type Location struct {
	Model
	StoryID          *string `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	StoryWorldID     *string `json:"story_world_id,omitempty" gorm:"type:varchar(64);index"`
	Name             string  `json:"name" gorm:"type:varchar(255);index;not null"`
	Description      string  `json:"description,omitempty" gorm:"type:text"`
	LocationType     string  `json:"location_type,omitempty" gorm:"type:varchar(50)"`
	ParentLocationID *string `json:"parent_location_id,omitempty" gorm:"type:varchar(64);index"`
	Climate          string  `json:"climate,omitempty" gorm:"type:varchar(255)"`
	MapCoordinates   string  `json:"map_coordinates,omitempty" gorm:"type:varchar(255)"`
	Significance     string  `json:"significance,omitempty" gorm:"type:text"`
}

// TableName 指定表名
func (Location) TableName() string {
	return string(TableLocations)
}
