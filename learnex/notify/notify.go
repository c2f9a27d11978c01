// learnex/notify/notify.go
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"learnex/learnex/utils/logging"
)

// Defaults filled in when a push payload omits fields.
const (
	DefaultTitle = "New Notification"
	DefaultBody  = "You have a new alert."
	DefaultIcon  = "/logo-light.jpg"
	DefaultTag   = "class-reminder"
	DefaultURL   = "/student/notifications"
)

// payload is the wire shape of a push event.
type payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
	Badge   string `json:"badge"`
	Tag     string `json:"tag"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Notification is a fully-defaulted notification ready to display.
type Notification struct {
	Title    string
	Body     string
	Icon     string
	Badge    string
	Tag      string
	URL      string
	Renotify bool
}

// Sink displays notifications. The terminal app prints them; a desktop build
// would hand them to the OS.
type Sink interface {
	Show(n Notification) error
}

// Dispatcher turns raw push events into displayed notifications.
type Dispatcher struct {
	sink Sink
}

func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// HandlePush parses a push event body and displays it. A body that is not
// JSON becomes the notification text under the default title.
func (d *Dispatcher) HandlePush(body []byte) error {
	p := payload{Title: DefaultTitle, Body: DefaultBody}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			p = payload{Title: DefaultTitle, Body: string(body)}
		}
	}

	n := Notification{
		Title:    p.Title,
		Body:     p.Body,
		Icon:     p.Icon,
		Badge:    p.Badge,
		Tag:      p.Tag,
		URL:      p.Data.URL,
		Renotify: true,
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		n.Body = p.Message
	}
	if n.Body == "" {
		n.Body = DefaultBody
	}
	if n.Icon == "" {
		n.Icon = DefaultIcon
	}
	if n.Badge == "" {
		n.Badge = DefaultIcon
	}
	if n.Tag == "" {
		n.Tag = DefaultTag
	}
	if n.URL == "" {
		n.URL = DefaultURL
	}

	logging.AppLogger.Info("push notification", zap.String("title", n.Title), zap.String("tag", n.Tag))
	return d.sink.Show(n)
}

// Window is an open view that can be focused, for click routing.
type Window interface {
	URL() string
	Focus() error
}

// RouteClick implements the click behavior: focus a window already at the
// target URL, else focus any open window, else open a new one.
func RouteClick(windows []Window, targetURL string, open func(url string) error) error {
	for _, w := range windows {
		if w.URL() == targetURL {
			return w.Focus()
		}
	}
	if len(windows) > 0 {
		return windows[0].Focus()
	}
	if open != nil {
		return open(targetURL)
	}
	return errors.New("no window to open notification target")
}

// DecodeVAPIDKey converts the server's base64url public key to raw bytes.
func DecodeVAPIDKey(key string) ([]byte, error) {
	key = strings.ReplaceAll(key, "-", "+")
	key = strings.ReplaceAll(key, "_", "/")
	if pad := len(key) % 4; pad != 0 {
		key += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(key)
}

// KeysAPI is the subscription half of the campus client.
type KeysAPI interface {
	VAPIDKey(ctx context.Context) (string, error)
}

// Registrar posts the finished subscription back to the server.
type Registrar interface {
	Register(ctx context.Context, serverKey []byte) error
}

// Subscribe fetches the VAPID public key, decodes it, and hands it to the
// registrar. Returns false (no error) when the server has no key configured.
func Subscribe(ctx context.Context, api KeysAPI, reg Registrar) (bool, error) {
	key, err := api.VAPIDKey(ctx)
	if err != nil {
		return false, err
	}
	if key == "" {
		return false, nil
	}
	raw, err := DecodeVAPIDKey(key)
	if err != nil {
		return false, err
	}
	if err := reg.Register(ctx, raw); err != nil {
		return false, err
	}
	return true, nil
}
