package assemble

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// A4 尺寸（pt）。
const (
	A4WidthPt  = 595.28
	A4HeightPt = 841.89
)

// SeparatorLabel 是分隔页上的文字。
const SeparatorLabel = "ANNEXES"

// SeparatorPage 生成一页 A4、居中 48pt "ANNEXES" 的分隔页。
func SeparatorPage() ([]byte, error) {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: A4WidthPt, Ht: A4HeightPt},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(SeparatorLabel, false)
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 48)
	doc.SetTextColor(0, 0, 0)
	doc.SetXY(0, A4HeightPt/2-24)
	doc.CellFormat(A4WidthPt, 48, SeparatorLabel, "", 0, "CM", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render separator page: %w", err)
	}
	return buf.Bytes(), nil
}
