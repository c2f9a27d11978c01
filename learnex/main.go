// Terminal entrypoint for the LearNex campus chat client
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"learnex/learnex/api"
	"learnex/learnex/chat"
	"learnex/learnex/composer"
	"learnex/learnex/config"
	"learnex/learnex/directory"
	"learnex/learnex/notify"
	"learnex/learnex/session"
	"learnex/learnex/storage"
	"learnex/learnex/transport"
	"learnex/learnex/types"
	"learnex/learnex/uploader"
	"learnex/learnex/utils/logging"
	"learnex/learnex/widget"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)

	store, err := storage.Open(cfg.StorePath)
	if err != nil {
		logging.ErrorLogger.Error("local store open error", zap.Error(err))
		fmt.Fprintln(os.Stderr, "cannot open local store:", err)
		os.Exit(1)
	}
	defer store.Close()

	id, err := session.Load(store)
	if err != nil {
		if errors.Is(err, session.ErrSessionIncomplete) {
			showSessionIncomplete(store)
			os.Exit(1)
		}
		logging.ErrorLogger.Error("session load error", zap.Error(err))
		os.Exit(1)
	}
	if id.TokenExpired(time.Now()) {
		fmt.Println("⚠ Your cached session token looks expired; the server may reject requests.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL, id.Token)
	dir := directory.New(client)
	ctrl := chat.NewController(id, client, dir)

	conn, err := transport.Dial(ctx, cfg.SocketURL, id.ID, ctrl)
	if err != nil {
		logging.ErrorLogger.Error("transport dial error", zap.Error(err))
		fmt.Fprintln(os.Stderr, "cannot reach the chat server:", err)
		os.Exit(1)
	}
	defer conn.Close()
	ctrl.BindTransport(conn)

	if err := dir.Refresh(ctx); err != nil {
		notice("Error fetching conversations: " + userMessage(err))
	}

	bot, err := widget.New(client, store)
	if err != nil {
		logging.ErrorLogger.Error("widget hydrate error", zap.Error(err))
	}

	if ok, err := notify.Subscribe(ctx, client, terminalRegistrar{client}); err != nil {
		logging.AppLogger.Warn("push subscription failed", zap.Error(err))
	} else if ok {
		logging.AppLogger.Info("subscribed to push notifications")
	}

	fmt.Printf("\n💬 LearNex chat — signed in as %s (%s)\n\n", id.Name, id.Role)
	fmt.Println("Commands:")
	fmt.Println("  /chats            list conversations")
	fmt.Println("  /contacts         recommended contacts")
	fmt.Println("  /search <name>    find people")
	fmt.Println("  /open <name>      open a thread")
	fmt.Println("  /find <text>      search inside the open thread")
	fmt.Println("  /attach <path> [caption]   send a file")
	fmt.Println("  /clear            clear the open thread")
	fmt.Println("  /bot <question>   ask the Campus Bot")
	fmt.Println("  /logout, /quit")
	fmt.Println()

	repl(ctrl, dir, client, bot, store, id)
}

func repl(ctrl *chat.Controller, dir *directory.Directory, client *api.Client, bot *widget.Widget, store *storage.Local, id session.Identity) {
	comp := composer.New()
	up := uploader.New(client)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(prompt(ctrl))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			fmt.Println("👋 Goodbye!")
			return

		case line == "/logout":
			if err := session.Logout(store); err != nil {
				notice("Logout failed: " + err.Error())
				continue
			}
			fmt.Println("Signed out. Run the login flow to start a new session.")
			return

		case line == "/chats":
			printConversations(dir)

		case line == "/contacts":
			ctx, cancel := opCtx()
			users, err := dir.Recommended(ctx)
			cancel()
			if err != nil {
				notice("Error fetching contacts: " + userMessage(err))
				continue
			}
			for _, u := range users {
				fmt.Printf("  %s — %s (%s)\n", u.Name, u.Email, u.Role)
			}

		case strings.HasPrefix(line, "/search "):
			ctx, cancel := opCtx()
			users, err := dir.Search(ctx, strings.TrimPrefix(line, "/search "))
			cancel()
			if err != nil {
				notice("Search error: " + userMessage(err))
				continue
			}
			if len(users) == 0 {
				fmt.Println("  no matches")
				if dir.Empty() {
					fmt.Println("  No active conversations — try /contacts to start a new chat.")
				}
				continue
			}
			for _, u := range users {
				fmt.Printf("  %s (%s)\n", u.Name, u.Role)
			}

		case strings.HasPrefix(line, "/open "):
			openThread(ctrl, dir, strings.TrimPrefix(line, "/open "))

		case strings.HasPrefix(line, "/find "):
			query := strings.TrimPrefix(line, "/find ")
			for _, m := range composer.Filter(ctrl.Messages(), query) {
				printMessage(m, id.ID)
			}

		case strings.HasPrefix(line, "/attach "):
			sendAttachment(ctrl, up, comp, strings.TrimPrefix(line, "/attach "))

		case line == "/clear":
			ctx, cancel := opCtx()
			err := ctrl.ClearChat(ctx, confirmClear(scanner))
			cancel()
			if errors.Is(err, chat.ErrClearCancelled) {
				continue
			}
			if err != nil {
				notice("Failed to clear chat: " + userMessage(err))
				continue
			}
			fmt.Println("Chat cleared successfully")

		case strings.HasPrefix(line, "/bot "):
			if bot == nil {
				notice("Campus Bot is unavailable")
				continue
			}
			ctx, cancel := opCtx()
			reply := bot.Ask(ctx, strings.TrimPrefix(line, "/bot "))
			cancel()
			fmt.Println("🤖", reply.Text)

		default:
			comp.SetText(line)
			if !comp.CanSend() {
				continue
			}
			text, _ := comp.Take()
			if err := ctrl.Send(text); err != nil {
				notice("Send failed: " + userMessage(err))
			}
		}
	}
}

func openThread(ctrl *chat.Controller, dir *directory.Directory, name string) {
	ctx, cancel := opCtx()
	defer cancel()

	target, ok := findContact(ctx, dir, name)
	if !ok {
		notice("No contact named " + name)
		return
	}
	if err := ctrl.Select(ctx, target); err != nil {
		notice("Error fetching messages: " + userMessage(err))
		return
	}
	for _, m := range ctrl.Messages() {
		printMessage(m, "")
	}
}

func findContact(ctx context.Context, dir *directory.Directory, name string) (types.UserSummary, bool) {
	lower := strings.ToLower(name)
	for _, c := range dir.Conversations() {
		if strings.Contains(strings.ToLower(c.User.Name), lower) {
			return c.User, true
		}
	}
	if users, err := dir.Recommended(ctx); err == nil {
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.Name), lower) {
				return u, true
			}
		}
	}
	if users, err := dir.Search(ctx, name); err == nil && len(users) > 0 {
		return users[0], true
	}
	return types.UserSummary{}, false
}

func sendAttachment(ctrl *chat.Controller, up *uploader.Uploader, comp *composer.Composer, args string) {
	parts := strings.SplitN(args, " ", 2)
	path := parts[0]
	caption := ""
	if len(parts) == 2 {
		caption = parts[1]
	}

	info, err := os.Stat(path)
	if err != nil {
		notice("Cannot read file: " + err.Error())
		return
	}
	f, err := os.Open(path)
	if err != nil {
		notice("Cannot read file: " + err.Error())
		return
	}
	defer f.Close()

	sel, ok := ctrl.Selected()
	if !ok {
		notice("Please select a user first")
		return
	}

	comp.SetText(caption)
	comp.Attach(uploader.File{Name: filepath.Base(path), Size: info.Size(), Reader: f})
	text, att := comp.Take()

	ctx, cancel := opCtx()
	defer cancel()
	if _, err := up.Send(ctx, ctrl, sel.ID, text, *att); err != nil {
		notice("Failed to upload file: " + userMessage(err))
		return
	}
	fmt.Printf("File %q uploaded successfully!\n", att.Name)
}

func confirmClear(scanner *bufio.Scanner) func(types.UserSummary) bool {
	return func(u types.UserSummary) bool {
		fmt.Printf("Clear all messages with %s? This action cannot be undone. [y/N] ", u.Name)
		if !scanner.Scan() {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return answer == "y" || answer == "yes"
	}
}

func printConversations(dir *directory.Directory) {
	convs := dir.Conversations()
	if len(convs) == 0 {
		fmt.Println("  No active conversations — try /contacts to start a new chat.")
		return
	}
	for _, c := range convs {
		marker := " "
		if c.Unread {
			marker = "●"
		}
		fmt.Printf("  %s %-20s %s  (%s)\n", marker, c.User.Name, c.LastMessage, c.LastMessageDate.Format("15:04"))
	}
}

func printMessage(m types.Message, selfID string) {
	when := m.CreatedAt.Format("15:04")
	tick := ""
	if selfID != "" && m.Sender == selfID {
		if m.Read {
			tick = " ✓✓"
		} else {
			tick = " ✓"
		}
	}
	if m.HasFile() {
		fmt.Printf("  [%s] 📎 %s (%s, %s)%s\n", when, m.FileName, composer.FileKind(m.FileType), composer.FormatFileSize(m.FileSize), tick)
		if m.Content != "" {
			fmt.Printf("         %s\n", m.Content)
		}
		return
	}
	fmt.Printf("  [%s] %s%s\n", when, m.Content, tick)
}

func prompt(ctrl *chat.Controller) string {
	if sel, ok := ctrl.Selected(); ok {
		return sel.Name + "> "
	}
	return "learnex> "
}

func notice(msg string) {
	// transient toast analog
	fmt.Println("⚠", msg)
}

func userMessage(err error) string {
	return err.Error()
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func showSessionIncomplete(store *storage.Local) {
	fmt.Println("Session Incomplete")
	fmt.Println("Your profile data is missing from the local store.")
	fmt.Println("Please sign out and sign in again to enable chat.")
	_ = session.Logout(store)
}

// terminalRegistrar posts a placeholder subscription; a desktop build would
// register a real push endpoint here.
type terminalRegistrar struct {
	client *api.Client
}

func (r terminalRegistrar) Register(ctx context.Context, serverKey []byte) error {
	var sub api.PushSubscription
	sub.Endpoint = "learnex-cli://" + strconv.Itoa(len(serverKey))
	return r.client.SubscribePush(ctx, sub)
}
