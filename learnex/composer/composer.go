// learnex/composer/composer.go
package composer

import (
	"fmt"
	"strings"
	"sync"

	"learnex/learnex/types"
	"learnex/learnex/uploader"
)

// palette is the static emoji set offered by the picker.
var palette = []string{
	"😀", "😃", "😄", "😁", "😆", "😅", "😂", "🤣",
	"😊", "😇", "🙂", "😉", "😌", "😍", "🥰", "😘",
	"😋", "😎", "🤩", "😏", "😒", "😞", "😔", "😢",
	"😭", "😤", "😠", "👍", "👎", "👏", "🙌", "🙏",
	"✌️", "🤞", "👌", "👋", "💪", "❤️", "💙", "💜",
	"🔥", "✨", "⭐", "✅", "🎉", "🎊", "🎁", "🏆",
}

// Composer holds the text being typed and the pending attachment. The send
// control stays disabled while both are empty.
type Composer struct {
	mu         sync.Mutex
	text       string
	attachment *uploader.File
}

func New() *Composer {
	return &Composer{}
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// InsertEmoji appends an emoji from the palette to the draft.
func (c *Composer) InsertEmoji(emoji string) {
	c.mu.Lock()
	c.text += emoji
	c.mu.Unlock()
}

func (c *Composer) Attach(f uploader.File) {
	c.mu.Lock()
	c.attachment = &f
	c.mu.Unlock()
}

func (c *Composer) Attachment() (uploader.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment == nil {
		return uploader.File{}, false
	}
	return *c.attachment, true
}

// CanSend reports whether the send control is enabled: some non-blank text or
// a pending attachment.
func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.text) != "" || c.attachment != nil
}

// Take clears the draft optimistically and returns what was composed. Called
// on submit before any acknowledgement arrives.
func (c *Composer) Take() (string, *uploader.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.text
	att := c.attachment
	c.text = ""
	c.attachment = nil
	return text, att
}

// Palette returns the emoji picker contents.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}

// Filter is the in-thread search: a case-insensitive substring match over the
// already-loaded messages only. It never queries the server.
func Filter(msgs []types.Message, query string) []types.Message {
	if query == "" {
		return msgs
	}
	q := strings.ToLower(query)
	var out []types.Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, m)
		}
	}
	return out
}

// FormatFileSize renders a byte count the way the chat bubbles do.
func FormatFileSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// FileKind maps a MIME type to the bubble's attachment label.
func FileKind(fileType string) string {
	switch {
	case fileType == "":
		return "file"
	case strings.Contains(fileType, "image"):
		return "image"
	case strings.Contains(fileType, "pdf"):
		return "pdf"
	case strings.Contains(fileType, "video"):
		return "video"
	case strings.Contains(fileType, "audio"):
		return "audio"
	case strings.Contains(fileType, "word"), strings.Contains(fileType, "document"):
		return "document"
	case strings.Contains(fileType, "zip"), strings.Contains(fileType, "rar"):
		return "archive"
	default:
		return "file"
	}
}
