package resume

import (
	"bytes"
	"encoding/json"
	"math"
)

// ImageKind 区分头像/签名图片的来源。
type ImageKind int

const (
	ImageNone ImageKind = iota
	// ImageRemote 是已上传、可直接引用的 URL。
	ImageRemote
	// ImagePending 是本地持有、尚未上传的二进制数据。
	ImagePending
)

// Image 是 Remote(url) | Pending(bytes, filename) 的标签联合。
type Image struct {
	kind        ImageKind
	url         string
	data        []byte
	filename    string
	contentType string
}

// RemoteImage 构造远程图片。
func RemoteImage(url string) Image {
	if url == "" {
		return Image{}
	}
	return Image{kind: ImageRemote, url: url}
}

// PendingImage 构造待上传图片。
func PendingImage(data []byte, filename, contentType string) Image {
	if len(data) == 0 {
		return Image{}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Image{kind: ImagePending, data: data, filename: filename, contentType: contentType}
}

func (i Image) Kind() ImageKind { return i.kind }

// IsNone 表示没有任何图片。
func (i Image) IsNone() bool { return i.kind == ImageNone }

// IsZero 供 json 的 omitzero 使用：只有远程 URL 会写入 resumeData，
// 待上传图片与空图片一样整个省略。
func (i Image) IsZero() bool { return i.kind != ImageRemote }

// URL 返回远程地址；非 Remote 时为空。
func (i Image) URL() string {
	if i.kind != ImageRemote {
		return ""
	}
	return i.url
}

// Data 返回待上传的字节；非 Pending 时为 nil。
func (i Image) Data() []byte {
	if i.kind != ImagePending {
		return nil
	}
	return i.data
}

func (i Image) Filename() string    { return i.filename }
func (i Image) ContentType() string { return i.contentType }

// Equal 比较两张图片是否相同（Pending 比较内容）。
func (i Image) Equal(other Image) bool {
	if i.kind != other.kind {
		return false
	}
	switch i.kind {
	case ImageRemote:
		return i.url == other.url
	case ImagePending:
		return i.filename == other.filename &&
			i.contentType == other.contentType &&
			bytes.Equal(i.data, other.data)
	default:
		return true
	}
}

func (i Image) clone() Image {
	out := i
	if i.data != nil {
		out.data = append([]byte(nil), i.data...)
	}
	return out
}

// MarshalJSON 只序列化远程 URL；待上传图片通过 multipart 单独提交。
func (i Image) MarshalJSON() ([]byte, error) {
	if i.kind != ImageRemote {
		return []byte("null"), nil
	}
	return json.Marshal(i.url)
}

// UnmarshalJSON 接受字符串 URL；其余形态（null、浏览器残留的 {}）视为无图片。
func (i *Image) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		*i = Image{}
		return nil
	}
	var url string
	if err := json.Unmarshal(trimmed, &url); err != nil {
		return err
	}
	*i = RemoteImage(url)
	return nil
}

// 头像位置与缩放的取值范围。
const (
	DefaultImagePosition = 50.0
	DefaultImageScale    = 1.0
	MinImagePosition     = 0.0
	MaxImagePosition     = 100.0
	MinImageScale        = 1.0
	MaxImageScale        = 2.0
)

// ClampPosition 将坐标限制在 [0,100] 并取整，与拖拽交互保持一致。
func ClampPosition(p ImagePosition) ImagePosition {
	return ImagePosition{
		X: math.Round(clamp(p.X, MinImagePosition, MaxImagePosition)),
		Y: math.Round(clamp(p.Y, MinImagePosition, MaxImagePosition)),
	}
}

// ClampScale 将缩放限制在 [1,2]。
func ClampScale(s float64) float64 {
	return clamp(s, MinImageScale, MaxImageScale)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
