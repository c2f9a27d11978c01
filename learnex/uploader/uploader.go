// learnex/uploader/uploader.go
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"learnex/learnex/types"
)

// MaxFileSize is the pre-flight limit; the server enforces the same 50 MiB
// cap authoritatively.
const MaxFileSize = 50 << 20

var (
	ErrFileTooLarge    = errors.New("File size exceeds 50MB limit")
	ErrUnsupportedType = errors.New("File type not supported for chat")
)

// allowedExtensions mirrors the server's permissive chat filter.
var allowedExtensions = map[string]struct{}{
	".jpeg": {}, ".jpg": {}, ".png": {}, ".gif": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {}, ".txt": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".mp3": {}, ".wav": {},
	".zip": {}, ".rar": {},
}

// File is one attachment candidate. Size must be known before any network
// activity so the pre-flight guard can reject oversize files locally.
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// API is the upload half of the campus client.
type API interface {
	UploadAttachment(ctx context.Context, receiverID, content, fileName string, file io.Reader) (types.FileDescriptor, error)
}

// Announcer sends the uploaded file descriptor over the live transport.
type Announcer interface {
	Announce(desc types.FileDescriptor, caption string) error
}

// Uploader validates and streams one file to the API, then announces the
// resulting descriptor as a message. Nothing is retried automatically.
type Uploader struct {
	api API
}

func New(api API) *Uploader {
	return &Uploader{api: api}
}

// Validate runs the client-side guards. It is a UX guard only: the server
// remains the authority on size and type.
func Validate(f File) error {
	if f.Size > MaxFileSize {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := allowedExtensions[ext]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// Send validates, uploads, and announces. An oversize or unsupported file
// never reaches the network.
func (u *Uploader) Send(ctx context.Context, announcer Announcer, receiverID, caption string, f File) (types.FileDescriptor, error) {
	if err := Validate(f); err != nil {
		return types.FileDescriptor{}, err
	}
	desc, err := u.api.UploadAttachment(ctx, receiverID, caption, f.Name, f.Reader)
	if err != nil {
		return types.FileDescriptor{}, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	if err := announcer.Announce(desc, caption); err != nil {
		return desc, err
	}
	return desc, nil
}
