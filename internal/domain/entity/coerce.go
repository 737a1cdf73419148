// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownColumn 列不属于该表
	ErrUnknownColumn = errors.New("unknown column")
	// ErrInvalidValue 值无法转换为列类型
	ErrInvalidValue = errors.New("invalid value")
)

// Bind 校验列名并将整行转换为存储类型
func (t *TableInfo) Bind(row Record) (Record, error) {
	out := make(Record, len(row))
	for k, v := range row {
		col, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, k)
		}
		bound, err := Coerce(col, v)
		if err != nil {
			return nil, err
		}
		out[k] = bound
	}
	return out, nil
}

// Coerce 将载荷值转换为列的存储类型
// 文本列接受任意值：对象与数组编码为 JSON，数字与布尔格式化为字符串
func Coerce(col Column, v any) (any, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case *string:
		if p == nil {
			return nil, nil
		}
		v = *p
	case *time.Time:
		if p == nil {
			return nil, nil
		}
		v = *p
	}

	switch col.Kind {
	case ColumnInteger:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		if n, ok := ToInt64(v); ok {
			return n, nil
		}
		return nil, fmt.Errorf("%w: column %s expects an integer, got %v", ErrInvalidValue, col.Name, v)

	case ColumnReal:
		if f, ok := ToFloat64(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("%w: column %s expects a number, got %v", ErrInvalidValue, col.Name, v)

	case ColumnTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("%w: column %s expects an RFC3339 time: %v", ErrInvalidValue, col.Name, err)
			}
			return parsed.UTC(), nil
		}
		return nil, fmt.Errorf("%w: column %s expects a time, got %T", ErrInvalidValue, col.Name, v)

	default:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		case json.Number:
			return t.String(), nil
		case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return fmt.Sprint(t), nil
		case time.Time:
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrInvalidValue, col.Name, err)
		}
		return string(raw), nil
	}
}
