package storage

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Session keys mirrored from the browser client's local storage.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUserRole = "userRole"
	KeyUserName = "userName"
)

// SessionEntry is one key/value pair of the cached login session.
type SessionEntry struct {
	Key   string `gorm:"primaryKey;type:varchar(64)"`
	Value string `gorm:"type:text;not null"`
}

// WidgetMessage is one line of the assistant-widget transcript. The transcript
// is append-only and never pruned.
type WidgetMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Sender    string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	IsError   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

// Local is the on-disk store backing the session identity and the widget
// transcript. One database per user profile.
type Local struct {
	DB *gorm.DB
}

func Open(path string) (*Local, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SessionEntry{}, &WidgetMessage{}); err != nil {
		return nil, err
	}
	return &Local{DB: db}, nil
}

func (l *Local) Get(key string) (string, error) {
	var entry SessionEntry
	err := l.DB.First(&entry, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (l *Local) Set(key, value string) error {
	entry := SessionEntry{Key: key, Value: value}
	return l.DB.Save(&entry).Error
}

func (l *Local) Delete(key string) error {
	return l.DB.Delete(&SessionEntry{}, "key = ?", key).Error
}

// ClearSession removes the cached identity keys. The widget transcript is
// left alone, matching the browser client which only clears on full
// localStorage.clear at re-login.
func (l *Local) ClearSession() error {
	keys := []string{KeyToken, KeyUser, KeyUserRole, KeyUserName}
	return l.DB.Delete(&SessionEntry{}, "key IN ?", keys).Error
}

func (l *Local) AppendWidgetMessage(msg WidgetMessage) error {
	return l.DB.Create(&msg).Error
}

func (l *Local) WidgetMessages() ([]WidgetMessage, error) {
	var msgs []WidgetMessage
	err := l.DB.Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}

func (l *Local) Close() {
	sqlDB, err := l.DB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
