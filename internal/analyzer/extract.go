package analyzer

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/YKarmar/JobMail/internal/types"
)

// ExtractText pulls sender, subject and plain-text body out of a message.
func ExtractText(msg *types.Message) types.ExtractedText {
	if msg == nil || msg.Payload == nil {
		return types.ExtractedText{}
	}
	var body strings.Builder
	collectText(msg.Payload, &body)
	return types.ExtractedText{
		From:    HeaderValue(msg.Payload.Headers, "From"),
		Subject: HeaderValue(msg.Payload.Headers, "Subject"),
		Body:    body.String(),
	}
}

// HeaderValue returns the value of the first header named name, or "".
func HeaderValue(headers []types.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// collectText appends a part's own text before the text of its children.
// Containers contribute inline data too; other leaves only when text/plain.
func collectText(part *types.MessagePart, out *strings.Builder) {
	if part.Body != nil && part.Body.Data != "" &&
		(part.MimeType == "text/plain" || len(part.Parts) > 0) {
		out.WriteString(DecodeBody(part.Body.Data))
	}
	for i := range part.Parts {
		collectText(&part.Parts[i], out)
	}
}

// DecodeBody decodes URL-safe base64 text. Malformed input or non-UTF-8
// content yields "".
func DecodeBody(data string) string {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	if !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}
