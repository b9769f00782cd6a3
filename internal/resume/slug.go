package resume

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidSlug 表示自定义链接不符合格式要求。
var ErrInvalidSlug = errors.New("slug can only contain lowercase letters, numbers, and hyphens")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NormalizeSlug 去除首尾空白并转为小写。
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateSlug 校验已规范化的 slug；空字符串表示清除 slug，视为合法。
func ValidateSlug(s string) error {
	if s == "" {
		return nil
	}
	if !slugPattern.MatchString(s) {
		return ErrInvalidSlug
	}
	return nil
}
