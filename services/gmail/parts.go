package gmail

import (
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/customeros/mailsorter/dto"
)

func HeaderValue(m *gmailapi.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// FlattenParts walks the MIME tree depth first and returns the leaves that
// carry inline data, in document order. Attachments stored by reference are
// skipped.
func FlattenParts(part *gmailapi.MessagePart) []dto.BodyPart {
	var out []dto.BodyPart
	var walk func(p *gmailapi.MessagePart)
	walk = func(p *gmailapi.MessagePart) {
		if p == nil {
			return
		}
		if len(p.Parts) > 0 {
			for _, child := range p.Parts {
				walk(child)
			}
			return
		}
		if p.Body == nil || p.Body.Data == "" {
			return
		}
		out = append(out, dto.BodyPart{MimeType: p.MimeType, Base64Data: p.Body.Data})
	}
	walk(part)
	return out
}
