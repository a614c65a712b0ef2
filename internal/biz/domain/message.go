package domain

import (
	"strings"
	"time"
)

// MessageRecord is a cached snapshot of a received message
type MessageRecord struct {
	ID         string
	Chat       string
	Sender     string
	Content    string
	MsgType    string
	CapturedAt time.Time
}

// RecordFrom snapshots a received message for the caches
func RecordFrom(msg *MessageReceived, now time.Time) MessageRecord {
	return MessageRecord{
		ID:         msg.ID,
		Chat:       msg.Chat,
		Sender:     msg.Sender,
		Content:    msg.Content,
		MsgType:    msg.MsgType,
		CapturedAt: now,
	}
}

// UnsupportedContent is the summary used when nothing readable can be extracted
const UnsupportedContent = "Unsupported message type"

// DescribeContent renders a one-line summary of a message body.
// text is the plain body, caption applies to media, name to files.
func DescribeContent(msgType, text, caption, name string) string {
	switch msgType {
	case "text", "post", "":
		if text == "" && msgType == "" {
			return UnsupportedContent
		}
		return text
	case "image":
		return withCaption("[Image]", caption)
	case "video", "media":
		return withCaption("[Video]", caption)
	case "audio":
		return "[Audio Message]"
	case "file":
		return withCaption("[Document]", name)
	case "sticker":
		return "[Sticker]"
	default:
		return "[" + msgType + "]"
	}
}

func withCaption(label, caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return label
	}
	return label + " " + caption
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
