// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record 松散类型的行数据，列名到值的映射
// 导入包、存储层与 CRUD 接口都以 Record 传递数据
type Record map[string]any

// Filter 等值过滤条件（列名 -> 值）
type Filter map[string]any

// Has 字段存在且不为 nil
func (r Record) Has(key string) bool {
	if r == nil {
		return false
	}
	v, ok := r[key]
	return ok && v != nil
}

// HasAny 任一字段存在
func (r Record) HasAny(keys ...string) bool {
	for _, k := range keys {
		if r.Has(k) {
			return true
		}
	}
	return false
}

// String 返回去除首尾空白的字符串值，非字符串返回空
func (r Record) String(key string) string {
	if r == nil {
		return ""
	}
	s, ok := r[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// FirstString 按顺序返回第一个非空字符串字段
func (r Record) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// ID 返回行 ID
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	switch v := r["id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int 返回整数值，缺失或无法转换时返回默认值
func (r Record) Int(key string, def int64) int64 {
	if r == nil {
		return def
	}
	if n, ok := ToInt64(r[key]); ok {
		return n
	}
	return def
}

// Strings 返回字符串列表（支持 []any / []string / 单个字符串）
func (r Record) Strings(key string) []string {
	if r == nil {
		return nil
	}
	var out []string
	switch v := r[key].(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				// 允许 [{"name": "..."}] 形式
				if s := Record(it).FirstString("name", "title"); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Clone 浅拷贝
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AsRecord 将任意 JSON 对象转为 Record
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	default:
		return nil, false
	}
}

// ToInt64 将数值类值转为 int64
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// ToFloat64 将数值类值转为 float64
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return 0, false
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
