package storyimport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"novel-graph-api/internal/domain/entity"
)

// RecordList 记录数组
// 解码时非对象元素保留为 nil，由对应阶段作为畸形记录跳过
type RecordList []entity.Record

// UnmarshalJSON 容忍数组中的非对象元素
func (l *RecordList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = toRecordList(raw)
	return nil
}

// UnmarshalYAML 容忍数组中的非对象元素
func (l *RecordList) UnmarshalYAML(node *yaml.Node) error {
	var raw []any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*l = toRecordList(raw)
	return nil
}

func toRecordList(raw []any) RecordList {
	out := make(RecordList, len(raw))
	for i, item := range raw {
		if rec, ok := entity.AsRecord(item); ok {
			out[i] = rec
		}
	}
	return out
}

// Bundle 分析后的故事实体包
// 实体之间通过名称/标题互相引用，而不是数据库 ID
type Bundle struct {
	StoryWorld         entity.Record `json:"storyWorld,omitempty" yaml:"storyWorld,omitempty"`
	Story              entity.Record `json:"story" yaml:"story"`
	Characters         RecordList    `json:"characters,omitempty" yaml:"characters,omitempty"`
	Locations          RecordList    `json:"locations,omitempty" yaml:"locations,omitempty"`
	Factions           RecordList    `json:"factions,omitempty" yaml:"factions,omitempty"`
	Objects            RecordList    `json:"objects,omitempty" yaml:"objects,omitempty"`
	Events             RecordList    `json:"events,omitempty" yaml:"events,omitempty"`
	Relationships      RecordList    `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Plotlines          RecordList    `json:"plotlines,omitempty" yaml:"plotlines,omitempty"`
	Scenes             RecordList    `json:"scenes,omitempty" yaml:"scenes,omitempty"`
	CharacterEvents    RecordList    `json:"characterEvents,omitempty" yaml:"characterEvents,omitempty"`
	PlotlineEvents     RecordList    `json:"plotlineEvents,omitempty" yaml:"plotlineEvents,omitempty"`
	PlotlineCharacters RecordList    `json:"plotlineCharacters,omitempty" yaml:"plotlineCharacters,omitempty"`
	EventDependencies  RecordList    `json:"eventDependencies,omitempty" yaml:"eventDependencies,omitempty"`
	SceneCharacters    RecordList    `json:"sceneCharacters,omitempty" yaml:"sceneCharacters,omitempty"`
}

// DecodeBundle 解码 JSON 或 YAML 格式的故事包
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty bundle")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("failed to decode bundle json: %w", err)
		}
		return &b, nil
	}
	if err := yaml.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle yaml: %w", err)
	}
	return &b, nil
}

// DecodeRecords 解码 JSON 或 YAML 格式的实体数组（无模式批量导入）
func DecodeRecords(data []byte) ([]any, error) {
	var out []any
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("failed to decode records json: %w", err)
		}
		if arr, ok := v.([]any); ok {
			return arr, nil
		}
		return []any{v}, nil
	}
	if err := yaml.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("failed to decode records yaml: %w", err)
	}
	return out, nil
}
