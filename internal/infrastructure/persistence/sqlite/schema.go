package sqlite

import (
	"context"
	"fmt"
	"strings"

	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/pkg/tracer"
)

// Migrate 按表注册信息建表（幂等）
func (s *Store) Migrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlite.Migrate")
	defer span.End()

	q := getQuerier(ctx, s.db)
	for _, t := range entity.Tables() {
		for _, stmt := range tableDDL(entity.MustInfo(t)) {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to create schema for %s: %w", t, err)
			}
		}
	}
	return nil
}

// tableDDL 生成建表与索引语句
func tableDDL(info *entity.TableInfo) []string {
	defs := make([]string, 0, len(info.Columns))
	for _, c := range info.Columns {
		def := quoteIdent(c.Name) + " " + sqlType(c.Kind)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + defaultLiteral(c)
		}
		defs = append(defs, def)
	}

	stmts := []string{fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdent(string(info.Name)), strings.Join(defs, ",\n  "),
	)}

	indexed := make([]string, 0, len(info.References)+2)
	if info.NaturalKey != "" {
		indexed = append(indexed, info.NaturalKey)
	}
	for _, ref := range info.References {
		indexed = append(indexed, ref.Column)
	}
	indexed = append(indexed, "created_at")
	for _, col := range indexed {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			quoteIdent(fmt.Sprintf("idx_%s_%s", info.Name, col)),
			quoteIdent(string(info.Name)), quoteIdent(col),
		))
	}
	return stmts
}

func sqlType(kind entity.ColumnKind) string {
	switch kind {
	case entity.ColumnInteger:
		return "INTEGER"
	case entity.ColumnReal:
		return "REAL"
	default:
		// 时间以定长 RFC3339 文本存储，可直接按字典序排序
		return "TEXT"
	}
}

func defaultLiteral(c entity.Column) string {
	v := strings.Trim(c.Default, `'"`)
	if c.Kind == entity.ColumnText {
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
