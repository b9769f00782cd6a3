package render

import (
	"fmt"
	"html/template"
	"strconv"

	"cvforge/internal/resume"
)

// ImageStyle 描述头像在裁剪框中的位置与缩放。
type ImageStyle struct {
	ObjectPosition string
	Transform      string
}

// PositionStyle 根据 image_position/image_scale 计算样式，缺省为 50% 50% 与 scale(1)。
// 这里不做区间校验，取值范围由编辑端在用户拖拽时保证。
func PositionStyle(p resume.PersonalInfo) ImageStyle {
	x, y := resume.DefaultImagePosition, resume.DefaultImagePosition
	if p.ImagePosition != nil {
		x, y = p.ImagePosition.X, p.ImagePosition.Y
	}
	scale := resume.DefaultImageScale
	if p.ImageScale != nil {
		scale = *p.ImageScale
	}
	return ImageStyle{
		ObjectPosition: fmt.Sprintf("%s%% %s%%", formatNumber(x), formatNumber(y)),
		Transform:      fmt.Sprintf("scale(%s)", formatNumber(scale)),
	}
}

// CSS 返回可直接写入 style 属性的内联样式。
func (s ImageStyle) CSS() template.CSS {
	return template.CSS(fmt.Sprintf("object-position: %s; transform: %s;", s.ObjectPosition, s.Transform))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
