package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"novel-graph-api/internal/application/record"
	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/domain/repository"
	apperrors "novel-graph-api/pkg/errors"
)

const (
	toolNameImportStory    = "import_analyzed_story"
	toolNameImportEntities = "import_entities"
	toolNameClassify       = "classify_entity"
	toolNameListRecords    = "list_records"
	toolNameGetRecord      = "get_record"
	toolNameCreateRecord   = "create_record"
	toolNameUpdateRecord   = "update_record"
	toolNameDeleteRecord   = "delete_record"
)

// ResultError 工具失败但仍有结构化结果（如导入在某阶段终止）
// Payload 原样作为 isError 内容返回
type ResultError struct {
	Payload string
	Err     error
}

func (e *ResultError) Error() string {
	return e.Err.Error()
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

// jsonTool 以 JSON 参数与 JSON 结果实现 tool.InvokableTool
type jsonTool[T any] struct {
	info *schema.ToolInfo
	run  func(ctx context.Context, args T) (any, error)
}

func newJSONTool[T any](info *schema.ToolInfo, run func(ctx context.Context, args T) (any, error)) tool.InvokableTool {
	return &jsonTool[T]{info: info, run: run}
}

func (t *jsonTool[T]) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// IsCallbacksEnabled 工具自行触发回调
func (t *jsonTool[T]) IsCallbacksEnabled() bool {
	return true
}

func (t *jsonTool[T]) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (out string, err error) {
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: argumentsInJSON})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
			return
		}
		callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: out})
	}()

	var args T
	if strings.TrimSpace(argumentsInJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	result, err := t.run(ctx, args)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

// describeError AppError 输出为 "message: detail"，其他错误原样输出
func describeError(err error) string {
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	return err.Error()
}

// NewTools 创建全部工具
func NewTools(importer *storyimport.Importer, records *record.Service) []tool.InvokableTool {
	return []tool.InvokableTool{
		newImportStoryTool(importer),
		newImportEntitiesTool(importer),
		newClassifyTool(),
		newListRecordsTool(records),
		newGetRecordTool(records),
		newCreateRecordTool(records),
		newUpdateRecordTool(records),
		newDeleteRecordTool(records),
	}
}

func tableParam() *schema.ParameterInfo {
	names := make([]string, 0, len(entity.Tables()))
	for _, t := range entity.Tables() {
		names = append(names, string(t))
	}
	return &schema.ParameterInfo{Type: schema.String, Desc: "表名", Required: true, Enum: names}
}

type importStoryArgs struct {
	// Bundle 可以是对象，也可以是 JSON/YAML 文本
	Bundle json.RawMessage `json:"bundle"`
}

func newImportStoryTool(importer *storyimport.Importer) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: toolNameImportStory,
		Desc: "导入分析后的故事包：世界、故事、角色、地点、势力、物品、事件、关系、情节线、场景及其关联。实体之间按名称引用，重复导入是幂等的。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"bundle": {
				Type:     schema.Object,
				Desc:     "故事包，story 必填；也可传入 JSON/YAML 文本",
				Required: true,
			},
		}),
	}
	return newJSONTool(info, func(ctx context.Context, args importStoryArgs) (any, error) {
		data, err := bundleBytes(args.Bundle)
		if err != nil {
			return nil, err
		}
		bundle, err := storyimport.DecodeBundle(data)
		if err != nil {
			return nil, apperrors.ErrBundleInvalid.WithDetail(err.Error())
		}
		result := importer.ImportAnalyzedStory(ctx, bundle)
		if !result.Success {
			payload, _ := json.Marshal(result)
			return nil, &ResultError{Payload: string(payload), Err: errors.New(result.Error)}
		}
		return result, nil
	})
}

// bundleBytes 对象原样返回，字符串解出文本
func bundleBytes(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, apperrors.ErrInvalidParam.WithDetail("bundle is required")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, apperrors.ErrInvalidParam.WithDetail(err.Error())
		}
		return []byte(text), nil
	}
	return raw, nil
}

type importEntitiesArgs struct {
	Records      []any  `json:"records"`
	StoryID      string `json:"story_id"`
	StoryWorldID string `json:"story_world_id"`
}

func newImportEntitiesTool(importer *storyimport.Importer) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: toolNameImportEntities,
		Desc: "无模式批量导入：逐条判断实体类别后写入对应的表。世界与故事记录的 ID 会传给之后缺少归属的记录。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"records": {
				Type:     schema.Array,
				Desc:     "实体记录数组，元素可以是对象或同类对象的数组",
				Required: true,
				ElemInfo: &schema.ParameterInfo{Type: schema.Object},
			},
			"story_id":       {Type: schema.String, Desc: "可选：默认归属的故事 ID"},
			"story_world_id": {Type: schema.String, Desc: "可选：默认归属的世界 ID"},
		}),
	}
	return newJSONTool(info, func(ctx context.Context, args importEntitiesArgs) (any, error) {
		if args.Records == nil {
			return nil, apperrors.ErrInvalidParam.WithDetail("records is required")
		}
		return importer.ImportEntities(ctx, args.Records, args.StoryID, args.StoryWorldID)
	})
}

type classifyArgs struct {
	Value any `json:"value"`
}

func newClassifyTool() tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: toolNameClassify,
		Desc: "根据字段形状判断一条记录（或同类记录数组）的实体类别，无法识别时返回 unknown。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"value": {Type: schema.Object, Desc: "待分类的记录，也可以是数组", Required: true},
		}),
	}
	return newJSONTool(info, func(_ context.Context, args classifyArgs) (any, error) {
		return map[string]string{"kind": string(storyimport.ClassifyEntity(args.Value))}, nil
	})
}

type listRecordsArgs struct {
	Table        string `json:"table"`
	StoryID      string `json:"story_id"`
	StoryWorldID string `json:"story_world_id"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
}

func newListRecordsTool(records *record.Service) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: toolNameListRecords,
		Desc: "分页列出某张表的记录，可按故事或世界过滤。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"table":          tableParam(),
			"story_id":       {Type: schema.String, Desc: "可选：故事 ID"},
			"story_world_id": {Type: schema.String, Desc: "可选：世界 ID"},
			"page":           {Type: schema.Integer, Desc: "页码，默认 1"},
			"page_size":      {Type: schema.Integer, Desc: "每页条数，默认 20，最大 100"},
		}),
	}
	return newJSONTool(info, func(ctx context.Context, args listRecordsArgs) (any, error) {
		filter := entity.Filter{}
		if v := strings.TrimSpace(args.StoryID); v != "" {
			filter["story_id"] = v
		}
		if v := strings.TrimSpace(args.StoryWorldID); v != "" {
			filter["story_world_id"] = v
		}
		return records.List(ctx, args.Table, record.ListQuery{
			Filter:     filter,
			Pagination: repository.NewPagination(args.Page, args.PageSize),
		})
	})
}

type recordRef struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

func recordRefParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"table": tableParam(),
		"id":    {Type: schema.String, Desc: "行 ID", Required: true},
	}
}

func newGetRecordTool(records *record.Service) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name:        toolNameGetRecord,
		Desc:        "按 ID 获取一条记录。",
		ParamsOneOf: schema.NewParamsOneOfByParams(recordRefParams()),
	}
	return newJSONTool(info, func(ctx context.Context, args recordRef) (any, error) {
		return records.Get(ctx, args.Table, args.ID)
	})
}

type createRecordArgs struct {
	Table  string        `json:"table"`
	Record entity.Record `json:"record"`
}

func newCreateRecordTool(records *record.Service) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: toolNameCreateRecord,
		Desc: "在指定表中创建一条记录，未提供 id 时自动生成。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"table":  tableParam(),
			"record": {Type: schema.Object, Desc: "列名到值的映射", Required: true},
		}),
	}
	return newJSONTool(info, func(ctx context.Context, args createRecordArgs) (any, error) {
		return records.Create(ctx, args.Table, args.Record)
	})
}

type updateRecordArgs struct {
	Table string        `json:"table"`
	ID    string        `json:"id"`
	Patch entity.Record `json:"patch"`
}

func newUpdateRecordTool(records *record.Service) tool.InvokableTool {
	params := recordRefParams()
	params["patch"] = &schema.ParameterInfo{Type: schema.Object, Desc: "要更新的列", Required: true}
	info := &schema.ToolInfo{
		Name:        toolNameUpdateRecord,
		Desc:        "按 ID 部分更新一条记录。",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
	return newJSONTool(info, func(ctx context.Context, args updateRecordArgs) (any, error) {
		return records.Update(ctx, args.Table, args.ID, args.Patch)
	})
}

func newDeleteRecordTool(records *record.Service) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name:        toolNameDeleteRecord,
		Desc:        "按 ID 删除一条记录，同时删除引用它的关联行并置空其他实体上的引用。",
		ParamsOneOf: schema.NewParamsOneOfByParams(recordRefParams()),
	}
	return newJSONTool(info, func(ctx context.Context, args recordRef) (any, error) {
		return records.Delete(ctx, args.Table, args.ID)
	})
}
