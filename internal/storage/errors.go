package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断错误是否表示对象不存在。
// 优先读取 MinIO 的错误码，代理层把错误压成字符串时退回文本匹配。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch strings.ToLower(strings.TrimSpace(resp.Code)) {
		case "nosuchkey", "notfound":
			return true
		}
		return resp.StatusCode == 404 && !strings.EqualFold(resp.Code, "NoSuchBucket")
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") ||
		strings.Contains(lower, "specified key does not exist")
}
