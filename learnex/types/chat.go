// learnex/types/chat.go
package types

import (
	"errors"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// UserSummary is the projection of a user the chat endpoints return
// (conversation partners, search hits, recommended contacts).
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageFile         MessageType = "file"
	MessageTextWithFile MessageType = "text-with-file"
)

// Message is one chat message between two users. The messageType field
// discriminates which of the optional fields must be populated.
type Message struct {
	ID          string      `json:"_id"`
	Sender      string      `json:"sender"`
	Receiver    string      `json:"receiver"`
	Content     string      `json:"content,omitempty"`
	MessageType MessageType `json:"messageType"`
	FileURL     string      `json:"fileUrl,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	FileType    string      `json:"fileType,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"createdAt"`
}

var (
	ErrMissingParticipants = errors.New("message missing sender or receiver")
	ErrInconsistentShape   = errors.New("message fields inconsistent with messageType")
)

// HasFile reports whether any file-bearing field is set.
func (m Message) HasFile() bool {
	return m.FileURL != "" || m.FileName != "" || m.FileType != "" || m.FileSize != 0
}

// Validate enforces the tagged-union shape: text messages carry content and no
// file fields, file messages carry file fields and no content, text-with-file
// carries both.
func (m Message) Validate() error {
	if m.Sender == "" || m.Receiver == "" {
		return ErrMissingParticipants
	}
	switch m.MessageType {
	case MessageText, "":
		if m.Content == "" || m.HasFile() {
			return ErrInconsistentShape
		}
	case MessageFile:
		if m.Content != "" || m.FileURL == "" {
			return ErrInconsistentShape
		}
	case MessageTextWithFile:
		if m.Content == "" || m.FileURL == "" {
			return ErrInconsistentShape
		}
	default:
		return ErrInconsistentShape
	}
	return nil
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.Sender == userID || m.Receiver == userID
}

// Counterpart returns the other participant relative to selfID.
func (m Message) Counterpart(selfID string) string {
	if m.Sender == selfID {
		return m.Receiver
	}
	return m.Sender
}

// Conversation is one row of the conversation directory: the counterpart plus
// a preview of the latest exchanged message.
type Conversation struct {
	User            UserSummary `json:"user"`
	LastMessage     string      `json:"lastMessage"`
	LastMessageDate time.Time   `json:"lastMessageDate"`
	Unread          bool        `json:"unread"`
}

// OutgoingMessage is the send_message payload. File fields are present only
// after an upload handed back a descriptor.
type OutgoingMessage struct {
	Sender      string      `json:"sender"`
	Receiver    string      `json:"receiver"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType,omitempty"`
	FileURL     string      `json:"fileUrl,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	FileType    string      `json:"fileType,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
}

// FileDescriptor is the upload endpoint's response, announced over the
// transport as a file message.
type FileDescriptor struct {
	MessageType MessageType `json:"messageType"`
	FileURL     string      `json:"fileUrl"`
	FileName    string      `json:"fileName"`
	FileType    string      `json:"fileType"`
	FileSize    int64       `json:"fileSize"`
}
