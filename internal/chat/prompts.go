package chat

import "strings"

const promptInstructions = `Bạn là trợ lý tư vấn của công ty. Chỉ trả lời dựa trên phần TÀI LIỆU dưới đây.
Nếu tài liệu không chứa câu trả lời, hãy trả lời rằng hiện ` + NoInfoMarker + ` về vấn đề này.
Trả về JSON đúng định dạng {"message": "...", "links": ["..."]} với links là các đường dẫn lấy từ tài liệu đã dùng, hoặc [] nếu không có.`

// BuildPrompt assembles one generation prompt from the retrieved knowledge
// chunks, the recent history lines (chronological, "sender: content"), and
// the customer's question.
func BuildPrompt(knowledge, history []string, question string) string {
	var b strings.Builder
	b.WriteString(promptInstructions)

	b.WriteString("\n\nTÀI LIỆU:\n")
	if len(knowledge) == 0 {
		b.WriteString("(không có tài liệu phù hợp)\n")
	}
	for _, chunk := range knowledge {
		b.WriteString("- ")
		b.WriteString(chunk)
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("\nLỊCH SỬ HỘI THOẠI:\n")
		for _, line := range history {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nCÂU HỎI: ")
	b.WriteString(question)
	return b.String()
}
