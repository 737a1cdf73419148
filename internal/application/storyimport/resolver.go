// Package storyimport 将分析后的故事实体包导入关系存储
package storyimport

import (
	"strings"

	"novel-graph-api/internal/domain/entity"
)

// NameIndex 规范化名称 -> ID
// 同名冲突时后写入者覆盖先写入者
type NameIndex map[string]string

// normalizeName 去除首尾空白并转小写
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildNameIndex 按名称字段建立索引，缺少名称或 ID 的行被忽略
func BuildNameIndex(rows []entity.Record, field string) NameIndex {
	idx := make(NameIndex, len(rows))
	for _, row := range rows {
		idx.Add(row.String(field), row.ID())
	}
	return idx
}

// Add 记录一个名称
func (idx NameIndex) Add(name, id string) {
	key := normalizeName(name)
	if key == "" || id == "" {
		return
	}
	idx[key] = id
}

// Resolve 按名称查找 ID，未命中返回 false
func (idx NameIndex) Resolve(raw string) (string, bool) {
	key := normalizeName(raw)
	if key == "" {
		return "", false
	}
	id, ok := idx[key]
	return id, ok
}

// Snapshot 某张表在一个导入阶段开始时的行快照
// 阶段内新建的行通过 Put 追加，使同批次后续记录能够匹配
type Snapshot struct {
	field string
	index NameIndex
	rows  map[string]entity.Record
}

// NewSnapshot 由查询结果建立快照
func NewSnapshot(rows []entity.Record, field string) *Snapshot {
	s := &Snapshot{
		field: field,
		index: make(NameIndex, len(rows)),
		rows:  make(map[string]entity.Record, len(rows)),
	}
	for _, row := range rows {
		s.Put(row)
	}
	return s
}

// Put 写入或替换一行
func (s *Snapshot) Put(row entity.Record) {
	id := row.ID()
	if id == "" {
		return
	}
	s.rows[id] = row
	s.index.Add(row.String(s.field), id)
}

// Index 名称索引
func (s *Snapshot) Index() NameIndex {
	return s.index
}

// ByName 按名称查找行
func (s *Snapshot) ByName(name string) (entity.Record, bool) {
	id, ok := s.index.Resolve(name)
	if !ok {
		return nil, false
	}
	row, ok := s.rows[id]
	return row, ok
}

// ByID 按 ID 查找行
func (s *Snapshot) ByID(id string) (entity.Record, bool) {
	row, ok := s.rows[strings.TrimSpace(id)]
	return row, ok
}

// Resolve 将引用解析为 ID：先按名称匹配，再接受已存在的 ID
func (s *Snapshot) Resolve(ref string) (string, bool) {
	if id, ok := s.index.Resolve(ref); ok {
		return id, true
	}
	if _, ok := s.ByID(ref); ok {
		return strings.TrimSpace(ref), true
	}
	return "", false
}

// Len 行数
func (s *Snapshot) Len() int {
	return len(s.rows)
}
