package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	"novel-graph-api/pkg/tracer"
)

// timeLayout 定长时间格式，保证字典序与时间序一致
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Select 按等值条件查询
func (s *Store) Select(ctx context.Context, table entity.Table, filter entity.Filter) ([]entity.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlite.RecordStore.Select")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(entity.Record(filter))
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	for _, col := range sortedKeys(bound) {
		if bound[col] == nil {
			where = append(where, quoteIdent(col)+" IS NULL")
			continue
		}
		where = append(where, quoteIdent(col)+" = ?")
		args = append(args, toSQLValue(bound[col]))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columnList(info), quoteIdent(string(table)))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := getQuerier(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to select %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRecords(info, rows)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return out, nil
}

// Insert 插入一行
// 缺失 id 时生成 UUID，缺失 created_at 时使用当前时间
func (s *Store) Insert(ctx context.Context, table entity.Table, row entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlite.RecordStore.Insert")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(row)
	if err != nil {
		return nil, err
	}
	if bound.ID() == "" {
		bound["id"] = uuid.NewString()
	}
	if bound["created_at"] == nil {
		bound["created_at"] = time.Now().UTC()
	}

	cols := sortedKeys(bound)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
		args[i] = toSQLValue(bound[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(string(table)), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := getQuerier(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return s.get(ctx, info, bound.ID())
}

// Update 按 ID 更新部分字段
func (s *Store) Update(ctx context.Context, table entity.Table, id string, patch entity.Record) (entity.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlite.RecordStore.Update")
	defer span.End()

	info, err := lookup(table)
	if err != nil {
		return nil, err
	}
	bound, err := info.Bind(patch)
	if err != nil {
		return nil, err
	}
	delete(bound, "id")
	if len(bound) == 0 {
		return s.get(ctx, info, id)
	}

	cols := sortedKeys(bound)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = quoteIdent(col) + " = ?"
		args = append(args, toSQLValue(bound[col]))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quoteIdent(string(table)), strings.Join(sets, ", "))
	res, err := getQuerier(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("failed to update %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.ErrRecordNotFound
	}
	return s.get(ctx, info, id)
}

// Delete 按 ID 删除
func (s *Store) Delete(ctx context.Context, table entity.Table, id string) error {
	ctx, span := tracer.Start(ctx, "sqlite.RecordStore.Delete")
	defer span.End()

	if _, err := lookup(table); err != nil {
		return err
	}
	res, err := getQuerier(ctx, s.db).ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(string(table))), id)
	if err != nil {
		tracer.RecordError(span, err)
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}

// get 按 ID 读取一行
func (s *Store) get(ctx context.Context, info *entity.TableInfo, id string) (entity.Record, error) {
	rows, err := getQuerier(ctx, s.db).QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columnList(info), quoteIdent(string(info.Name))), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", info.Name, err)
	}
	defer rows.Close()

	out, err := scanRecords(info, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", info.Name, err)
	}
	if len(out) == 0 {
		return nil, repository.ErrRecordNotFound
	}
	return out[0], nil
}

func lookup(table entity.Table) (*entity.TableInfo, error) {
	info, ok := entity.Lookup(string(table))
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownTable, table)
	}
	return info, nil
}

func columnList(info *entity.TableInfo) string {
	names := info.ColumnNames()
	for i, n := range names {
		names[i] = quoteIdent(n)
	}
	return strings.Join(names, ", ")
}

// toSQLValue 转换为驱动可接受的值
func toSQLValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(timeLayout)
	}
	return v
}

// scanRecords 扫描为 Record，时间列解析回 time.Time，空值列省略
func scanRecords(info *entity.TableInfo, rows *sql.Rows) ([]entity.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]entity.Record, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(entity.Record, len(cols))
		for i, name := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if v == nil {
				continue
			}
			if col, ok := info.Column(name); ok && col.Kind == entity.ColumnTime {
				if s, ok := v.(string); ok {
					if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
						v = t
					}
				}
			}
			rec[name] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sortedKeys(r entity.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
