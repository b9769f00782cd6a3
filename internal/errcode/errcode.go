// Package errcode 定义最终文档合成通知中的错误码。
package errcode

// 错误码约定：
// - 0：合成成功
// - 4xxx：文档已生成但内容不完整，客户端应提示用户
// - 5xxx：合成失败，没有生成新文档
const (
	OK = 0

	AnnexeSkipped = 4004

	SystemError  = 5000
	ResumeRender = 5001
	AnnexeMerge  = 5002
	ResultUpload = 5003
)

var messages = map[int]string{
	OK:            "final document is ready",
	AnnexeSkipped: "some annexes could not be loaded and were skipped",
	SystemError:   "final document assembly failed",
	ResumeRender:  "resume could not be rendered to pdf",
	AnnexeMerge:   "annexes could not be merged into the final document",
	ResultUpload:  "final document could not be stored",
}

// Message 返回错误码对应的用户可读说明；未知错误码按系统错误处理。
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[SystemError]
}

// Failed 表示没有生成新文档。
func Failed(code int) bool { return code >= 5000 }

// Incomplete 表示文档已生成但有内容缺失。
func Incomplete(code int) bool { return code >= 4000 && code < 5000 }
