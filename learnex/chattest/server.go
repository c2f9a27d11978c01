// learnex/chattest/server.go
//
// In-process stand-in for the campus API and socket server, used by package
// tests. It reproduces the documented chat contract (REST endpoints, socket
// events, conversation previews) against in-memory state.
package chattest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"learnex/learnex/types"
)

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeFrame(frame types.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := contextWithTimeout()
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Server holds the fake campus state. Zero-value fields give well-behaved
// defaults; the Fail* switches inject server errors for failure-path tests.
type Server struct {
	secret []byte
	router chi.Router

	mu       sync.Mutex
	users    map[string]types.UserSummary
	messages []types.Message
	conns    map[string][]*wsConn
	subs     []json.RawMessage

	FailClear    bool
	FailUpload   bool
	ChatbotReply string
	ChatbotFail  *struct {
		Status  int
		Message string
	}
	VAPIDPublicKey string
}

func NewServer() *Server {
	s := &Server{
		secret: []byte("chattest-secret"),
		users:  map[string]types.UserSummary{},
		conns:  map[string][]*wsConn{},
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})

	r.Group(func(gr chi.Router) {
		gr.Use(s.authMiddleware)
		gr.Get("/api/chat/conversations", s.handleConversations)
		gr.Get("/api/chat/recommended", s.handleRecommended)
		gr.Get("/api/chat/search", s.handleSearch)
		gr.Post("/api/chat/upload", s.handleUpload)
		gr.Get("/api/chat/{userID}", s.handleThread)
		gr.Delete("/api/chat/{userID}", s.handleClear)
		gr.Get("/api/notifications/vapid-key", s.handleVAPIDKey)
		gr.Post("/api/notifications/subscribe", s.handleSubscribe)
	})

	r.Post("/api/chatbot", s.handleChatbot)
	r.HandleFunc("/ws", s.handleWS)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// AddUser registers a directory entry; conversations only surface registered
// partners, like the original server's populated lookups.
func (s *Server) AddUser(u types.UserSummary) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// Token mints a bearer token the auth middleware accepts.
func (s *Server) Token(userID string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// Seed inserts a message directly into server state.
func (s *Server) Seed(msg types.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// MessagesBetween returns the stored thread between two users, oldest first.
func (s *Server) MessagesBetween(a, b string) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Message
	for _, m := range s.messages {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Joined reports whether userID has at least one registered socket.
func (s *Server) Joined(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID]) > 0
}

// Subscriptions returns the push subscriptions posted so far.
func (s *Server) Subscriptions() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]json.RawMessage, len(s.subs))
	copy(out, s.subs)
	return out
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		parts := strings.Split(auth, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		r.Header.Set("X-Test-User", userID)
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) string { return r.Header.Get("X-Test-User") }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// handleConversations rebuilds the directory from the message log: one entry
// per distinct partner, newest exchange first, with the file-preview rules of
// the original server.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]types.Message, len(s.messages))
	copy(history, s.messages)
	sort.SliceStable(history, func(i, j int) bool { return history[i].CreatedAt.After(history[j].CreatedAt) })

	seen := map[string]bool{}
	conversations := []types.Conversation{}
	for _, msg := range history {
		if !msg.Involves(me) {
			continue
		}
		partnerID := msg.Counterpart(me)
		if seen[partnerID] {
			continue
		}
		seen[partnerID] = true
		partner, ok := s.users[partnerID]
		if !ok {
			continue
		}
		preview := msg.Content
		switch msg.MessageType {
		case types.MessageFile:
			preview = "📎 " + msg.FileName
		case types.MessageTextWithFile:
			preview = "📎 " + msg.Content
		}
		conversations = append(conversations, types.Conversation{
			User:            partner,
			LastMessage:     preview,
			LastMessageDate: msg.CreatedAt,
			Unread:          !msg.Read && msg.Receiver == me,
		})
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleRecommended(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var want types.Role
	switch s.users[me].Role {
	case types.RoleStudent:
		want = types.RoleFaculty
	case types.RoleFaculty:
		want = types.RoleStudent
	}
	users := []types.UserSummary{}
	if want != "" {
		for _, u := range s.users {
			if u.Role == want {
				users = append(users, u)
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	q := strings.ToLower(r.URL.Query().Get("q"))
	s.mu.Lock()
	defer s.mu.Unlock()

	users := []types.UserSummary{}
	if q != "" {
		for _, u := range s.users {
			if u.ID == me {
				continue
			}
			if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
				users = append(users, u)
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if len(users) > 10 {
		users = users[:10]
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	other := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, s.MessagesBetween(me, other))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.FailClear {
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	me := currentUser(r)
	other := chi.URLParam(r, "userID")
	s.mu.Lock()
	kept := s.messages[:0]
	for _, m := range s.messages {
		between := (m.Sender == me && m.Receiver == other) || (m.Sender == other && m.Receiver == me)
		if !between {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat cleared successfully"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.FailUpload {
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	receiverID := r.FormValue("receiverId")
	if receiverID == "" {
		writeError(w, http.StatusBadRequest, "Receiver ID is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	content := r.FormValue("content")
	messageType := types.MessageFile
	if content != "" {
		messageType = types.MessageTextWithFile
	}
	msg := types.Message{
		ID:          uuid.New().String(),
		Sender:      currentUser(r),
		Receiver:    receiverID,
		Content:     content,
		MessageType: messageType,
		FileURL:     fmt.Sprintf("uploads/chat/file-%s%s", uuid.New().String()[:8], filepath.Ext(header.Filename)),
		FileName:    header.Filename,
		FileType:    header.Header.Get("Content-Type"),
		FileSize:    header.Size,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	if s.ChatbotFail != nil {
		writeError(w, s.ChatbotFail.Status, s.ChatbotFail.Message)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	reply := s.ChatbotReply
	if reply == "" {
		reply = "I am here to help with campus questions."
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": reply})
}

func (s *Server) handleVAPIDKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.VAPIDPublicKey})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription")
		return
	}
	s.mu.Lock()
	s.subs = append(s.subs, raw)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Subscribed"})
}
