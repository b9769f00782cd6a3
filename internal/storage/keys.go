package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 对象 key 前缀。images/ 与 annexes/ 下的对象可通过 /v1/files 公开读取，
// final-documents/ 只通过预签名链接下载。
const (
	PrefixImages         = "images/"
	PrefixAnnexes        = "annexes/"
	PrefixFinalDocuments = "final-documents/"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ImageExtension 返回受支持图片类型的扩展名。
func ImageExtension(contentType string) (string, bool) {
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// ImageKey 生成头像或签名图片的 key。
func ImageKey(userID uint, kind, ext string) string {
	return fmt.Sprintf("%s%d/%s-%s%s", PrefixImages, userID, kind, uuid.NewString(), ext)
}

// AnnexeKey 生成附件 PDF 的 key。
func AnnexeKey(userID uint, annexeID string) string {
	return fmt.Sprintf("%s%d/%s.pdf", PrefixAnnexes, userID, annexeID)
}

// FinalDocumentKey 生成合成结果的 key。
func FinalDocumentKey(userID uint) string {
	return fmt.Sprintf("%s%d/%s.pdf", PrefixFinalDocuments, userID, uuid.NewString())
}

// IsPublicFileKey 校验可公开读取的 key：前缀正确、无路径穿越、扩展名受支持。
func IsPublicFileKey(key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > 300 {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	lower := strings.ToLower(key)
	switch {
	case strings.HasPrefix(lower, PrefixImages):
		switch path.Ext(lower) {
		case ".png", ".jpg", ".jpeg", ".webp":
			return true
		}
	case strings.HasPrefix(lower, PrefixAnnexes):
		return path.Ext(lower) == ".pdf"
	}
	return false
}
