package dto

// ImportEntitiesRequest 无模式批量导入请求
type ImportEntitiesRequest struct {
	Records      []any  `json:"records" binding:"required"`
	StoryID      string `json:"story_id,omitempty"`
	StoryWorldID string `json:"story_world_id,omitempty"`
}

// ImportJobResponse 异步导入受理响应
type ImportJobResponse struct {
	JobID     string `json:"job_id"`
	MessageID string `json:"message_id"`
	Mode      string `json:"mode"`
}

// ClassifyResponse 分类结果
type ClassifyResponse struct {
	Kind string `json:"kind"`
}
