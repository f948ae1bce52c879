package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"reportview/internal/report"
)

// ExcerptRows is the number of leading rows sent to the model.
const ExcerptRows = 50

// Fields that are internal to the report generator and never sent.
var excludedFields = map[string]bool{
	"id":           true,
	"certificates": true,
	"departmentId": true,
	"titleId":      true,
}

const preamble = "Bạn là một trợ lý AI thông minh, chuyên phân tích và trả lời các câu hỏi về dữ liệu báo cáo đào tạo liên tục. " +
	"Chỉ sử dụng dữ liệu được cung cấp sau đây để trả lời. Hãy trả lời một cách ngắn gọn, chính xác bằng tiếng Việt."

// Excerpt copies the first ExcerptRows rows without internal fields.
func Excerpt(rows []report.Row) []map[string]any {
	n := min(len(rows), ExcerptRows)
	out := make([]map[string]any, 0, n)
	for _, row := range rows[:n] {
		m := make(map[string]any, len(row.Fields()))
		for k, v := range row.Fields() {
			if !excludedFields[k] {
				m[k] = v
			}
		}
		out = append(out, m)
	}
	return out
}

// BuildContext renders the report section of the prompt.
func BuildContext(title string, rows []report.Row) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Excerpt(rows)); err != nil {
		return "", fmt.Errorf("assistant: encode excerpt: %w", err)
	}
	data := strings.TrimSuffix(buf.String(), "\n")
	return fmt.Sprintf("Dữ liệu báo cáo:\n- Tên báo cáo: %s\n- Dữ liệu (tối đa %d dòng đầu): %s", title, ExcerptRows, data), nil
}

// BuildPrompt joins the instruction preamble, report context and question.
func BuildPrompt(context, question string) string {
	return preamble + "\n" + context + "\nCâu hỏi của người dùng: " + question
}

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
)

// FormatReply renders **bold**, *italic* and line breaks. All other text,
// including any HTML in the reply, is escaped.
func FormatReply(text string) template.HTML {
	out := html.EscapeString(text)
	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	out = strings.ReplaceAll(out, "\n", "<br />")
	return template.HTML(out)
}
