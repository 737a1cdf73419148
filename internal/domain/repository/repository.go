package repository

import "context"

// 分页默认值与上限
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TxKey 事务句柄在 context 中的键；各存储实现放入自己的事务类型
type TxKey struct{}

// Transactor 在同一事务内执行 fn，fn 返回错误时回滚
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 把越界参数收敛到合法范围
func NewPagination(page, pageSize int) Pagination {
	page = max(page, 1)
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// Offset 跳过的条数
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PagedResult 一页结果及总数
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// Page 从已排好序的完整结果中截取一页
func Page[T any](items []T, p Pagination) *PagedResult[T] {
	total := len(items)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	return &PagedResult[T]{
		Items:      items[start:end],
		Total:      int64(total),
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: (total + p.PageSize - 1) / p.PageSize,
	}
}
