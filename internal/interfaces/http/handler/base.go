package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "novel-graph-api/pkg/errors"
)

// defaultMaxBodyBytes 未配置时的请求体上限
const defaultMaxBodyBytes int64 = 8 << 20

// readBody 读取请求体，超出上限时返回参数错误
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("request body exceeds %d bytes", limit))
		}
		return nil, apperrors.ErrInvalidParam.WithDetail("failed to read request body").WithError(err)
	}
	return body, nil
}
