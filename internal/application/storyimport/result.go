package storyimport

import (
	"fmt"
)

// StageStatus 阶段结果状态
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StagePartial StageStatus = "partial"
	StageFatal   StageStatus = "fatal"
	StageSkipped StageStatus = "skipped"
)

// 阶段名，同时作为 counts 的键
const (
	StageStoryWorld         = "storyWorld"
	StageStory              = "story"
	StageCharacters         = "characters"
	StageLocations          = "locations"
	StageFactions           = "factions"
	StageObjects            = "objects"
	StageEvents             = "events"
	StageRelationships      = "relationships"
	StagePlotlines          = "plotlines"
	StageScenes             = "scenes"
	StageCharacterEvents    = "characterEvents"
	StagePlotlineEvents     = "plotlineEvents"
	StagePlotlineCharacters = "plotlineCharacters"
	StageEventDependencies  = "eventDependencies"
	StageSceneCharacters    = "sceneCharacters"
)

// StageOrder 阶段执行顺序
var StageOrder = []string{
	StageStoryWorld,
	StageStory,
	StageCharacters,
	StageLocations,
	StageFactions,
	StageObjects,
	StageEvents,
	StageRelationships,
	StagePlotlines,
	StageScenes,
	StageCharacterEvents,
	StagePlotlineEvents,
	StagePlotlineCharacters,
	StageEventDependencies,
	StageSceneCharacters,
}

// StageResult 单个阶段的结果
// fatal 终止整个导入；partial 表示有记录被跳过但阶段继续
type StageResult struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Count    int         `json:"count"`
	Skipped  int         `json:"skipped,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Error    string      `json:"error,omitempty"`
	Err      error       `json:"-"`
}

func newStage(name string) StageResult {
	return StageResult{Stage: name, Status: StageSuccess}
}

// skip 记录一条被跳过的记录
func (r *StageResult) skip(format string, args ...any) {
	r.Skipped++
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// warn 记录一条警告但不计为跳过
func (r *StageResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// fatal 标记阶段失败
func (r *StageResult) fatal(err error) StageResult {
	r.Status = StageFatal
	r.Err = err
	r.Error = err.Error()
	return *r
}

// done 根据跳过数决定 success / partial
func (r *StageResult) done() StageResult {
	if r.Status == StageFatal {
		return *r
	}
	if r.Skipped > 0 {
		r.Status = StagePartial
	} else {
		r.Status = StageSuccess
	}
	return *r
}

func skippedStage(name string) StageResult {
	return StageResult{Stage: name, Status: StageSkipped}
}

// ImportResult 故事包导入结果
type ImportResult struct {
	Success      bool           `json:"success"`
	Counts       map[string]int `json:"counts"`
	Error        string         `json:"error,omitempty"`
	StoryID      string         `json:"story_id,omitempty"`
	StoryWorldID string         `json:"story_world_id,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Stages       []StageResult  `json:"stages"`
}

func newImportResult() *ImportResult {
	counts := make(map[string]int, len(StageOrder))
	for _, s := range StageOrder {
		counts[s] = 0
	}
	return &ImportResult{Counts: counts, Stages: make([]StageResult, 0, len(StageOrder))}
}

// record 汇总一个阶段
func (r *ImportResult) record(stage StageResult) {
	r.Stages = append(r.Stages, stage)
	r.Counts[stage.Stage] += stage.Count
	r.Warnings = append(r.Warnings, stage.Warnings...)
}

// Stage 按名称获取阶段结果
func (r *ImportResult) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// BulkResult 无模式批量导入结果
type BulkResult struct {
	Counts       map[EntityKind]int `json:"counts"`
	Skipped      int                `json:"skipped"`
	Warnings     []string           `json:"warnings,omitempty"`
	StoryID      string             `json:"story_id,omitempty"`
	StoryWorldID string             `json:"story_world_id,omitempty"`
}

func (r *BulkResult) skip(format string, args ...any) {
	r.Skipped++
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
