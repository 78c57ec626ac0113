package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/app"
	"gwi.com/chat-sync/internal/core"
	"gwi.com/chat-sync/internal/models"
)

var commands = []string{
	"/login", "/register", "/logout", "/list", "/new", "/open", "/delete",
	"/rename", "/clear", "/models", "/model", "/profile", "/help", "/quit",
}

var (
	info    = color.New(color.FgCyan)
	failure = color.New(color.FgRed)
	you     = color.New(color.FgGreen, color.Bold)
	bot     = color.New(color.FgMagenta, color.Bold)
	dim     = color.New(color.Faint)
)

type repl struct {
	ctx  context.Context
	app  *app.App
	line *liner.State

	login *core.LoginViewModel
	list  *core.ConversationListViewModel
	chat  *core.ChatViewModel
}

func newREPL(ctx context.Context, a *app.App) *repl {
	return &repl{
		ctx:   ctx,
		app:   a,
		login: a.Login(),
		list:  a.Conversations(),
		chat:  a.Chat(),
	}
}

func (r *repl) run() error {
	r.line = liner.NewLiner()
	defer r.line.Close()
	defer r.close()

	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(func(in string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, in) {
				out = append(out, c)
			}
		}
		return out
	})

	info.Println("Type /help for commands. Sign in with /login.")
	for {
		if r.ctx.Err() != nil {
			return nil
		}
		input, err := r.line.Prompt(r.prompt())
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if !strings.HasPrefix(input, "/") {
			r.send(input)
			continue
		}
		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)
		if quit := r.dispatch(cmd, arg); quit {
			return nil
		}
	}
}

func (r *repl) close() {
	r.chat.Close()
	r.list.Close()
	r.login.Close()
}

func (r *repl) prompt() string {
	conv := r.chat.State().Get().Data.Conversation
	if conv.ID == "" {
		return "> "
	}
	return fmt.Sprintf("[%s] > ", conv.Title)
}

func (r *repl) dispatch(cmd, arg string) bool {
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.help()
	case "/login":
		r.signIn()
	case "/register":
		r.register()
	case "/logout":
		r.login.Logout()
		r.list.Close()
		r.list = r.app.Conversations()
		info.Println("Signed out.")
	case "/list":
		r.printConversations()
	case "/new":
		r.newConversation(arg)
	case "/open":
		r.open(arg)
	case "/delete":
		r.delete(arg)
	case "/rename":
		r.report(r.chat.RenameConversation(r.ctx, arg).ErrorMessage(), "Renamed.")
	case "/clear":
		r.report(r.chat.ClearConversation(r.ctx).ErrorMessage(), "Cleared.")
	case "/models":
		r.printModels()
	case "/model":
		res := r.chat.SelectModel(arg)
		r.report(res.ErrorMessage(), "Using "+res.Data.ID)
	case "/profile":
		r.profile(arg)
	default:
		failure.Printf("Unknown command %s\n", cmd)
	}
	return false
}

func (r *repl) help() {
	info.Println(`Commands:
  /login                 sign in
  /register              create an account
  /logout                sign out
  /list                  list your conversations
  /new <message>         start a conversation with a first message
  /open <n|id>           open a conversation
  /delete <n|id>         delete a conversation
  /rename <title>        rename the open conversation
  /clear                 delete every message of the open conversation
  /models                list models
  /model <id>            select a model
  /profile [name email]  show or update your profile
  /quit                  exit
Anything else is sent to the open conversation.`)
}

func (r *repl) signIn() {
	captcha := r.login.GetCaptcha(r.ctx)
	if captcha.IsError() {
		failure.Println(captcha.Message)
		return
	}
	account, err := r.line.Prompt("account: ")
	if err != nil {
		return
	}
	password, err := r.line.PasswordPrompt("password: ")
	if err != nil {
		return
	}
	fmt.Println(captcha.Data.Image)
	code, err := r.line.Prompt("code: ")
	if err != nil {
		return
	}

	res := r.login.Login(r.ctx, account, password, code, captcha.Data.Signature)
	if res.IsError() {
		failure.Println(res.Message)
		return
	}
	info.Printf("Welcome, %s.\n", res.Data.Username)
	if loaded := r.list.Load(r.ctx); loaded.IsError() {
		failure.Println(loaded.Message)
	}
	r.chat.LoadModels(r.ctx)
}

func (r *repl) register() {
	account, err := r.line.Prompt("account: ")
	if err != nil {
		return
	}
	username, err := r.line.Prompt("display name: ")
	if err != nil {
		return
	}
	password, err := r.line.PasswordPrompt("password: ")
	if err != nil {
		return
	}
	res := r.login.Register(r.ctx, account, username, password)
	r.report(res.ErrorMessage(), "Account created. Sign in with /login.")
}

func (r *repl) conversations() []models.Conversation {
	return r.list.State().Get().Data
}

func (r *repl) printConversations() {
	st := r.list.State().Get()
	if st.Error != "" {
		failure.Println(st.Error)
	}
	if len(st.Data) == 0 {
		dim.Println("No conversations.")
		return
	}
	for i, c := range st.Data {
		fmt.Printf("%3d  %-24s %s\n", i+1, c.Title, dim.Sprint(c.UpdatedAt.Local().Format(time.DateTime)))
	}
}

// resolve accepts a 1-based index into the listed conversations or an id.
func (r *repl) resolve(arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		list := r.conversations()
		if n >= 1 && n <= len(list) {
			return list[n-1].ID
		}
	}
	return arg
}

func (r *repl) newConversation(msg string) {
	res := r.chat.CreateNewConversation(r.ctx, "", msg)
	if res.IsError() {
		failure.Println(res.Message)
		return
	}
	r.printMessages()
}

func (r *repl) open(arg string) {
	if arg == "" {
		failure.Println("usage: /open <n|id>")
		return
	}
	res := r.chat.LoadConversation(r.ctx, r.resolve(arg))
	if res.IsError() {
		failure.Println(res.Message)
		return
	}
	r.printMessages()
}

func (r *repl) delete(arg string) {
	if arg == "" {
		failure.Println("usage: /delete <n|id>")
		return
	}
	res := r.list.DeleteConversation(r.ctx, r.resolve(arg))
	r.report(res.ErrorMessage(), "Deleted.")
}

func (r *repl) send(content string) {
	conv := r.chat.State().Get().Data.Conversation
	if conv.ID == "" {
		r.newConversation(content)
		return
	}
	res := r.chat.SendMessage(r.ctx, content, conv.ID)
	if res.IsError() {
		failure.Println(res.Message)
		return
	}
	bot.Print("assistant: ")
	fmt.Println(res.Data.Content)
}

// printMessages waits for the first snapshot of the open conversation.
func (r *repl) printMessages() {
	ch, cancel := r.chat.State().Subscribe()
	defer cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.IsLoading {
				continue
			}
			for _, m := range st.Data.Messages {
				switch {
				case m.IsError:
					failure.Printf("error: %s\n", m.Content)
				case m.IsFromUser:
					you.Print("you: ")
					fmt.Println(m.Content)
				default:
					bot.Print("assistant: ")
					fmt.Println(m.Content)
				}
			}
			return
		case <-timeout:
			dim.Println("Still loading messages...")
			return
		}
	}
}

func (r *repl) printModels() {
	r.chat.LoadModels(r.ctx)
	st := r.chat.State().Get().Data
	for _, m := range st.Models {
		marker := " "
		if m.ID == st.SelectedModel.ID {
			marker = "*"
		}
		fmt.Printf("%s %-28s %s\n", marker, m.ID, dim.Sprint(m.Description))
	}
}

func (r *repl) profile(arg string) {
	vm := r.app.Profile()
	defer vm.Close()

	if arg == "" {
		res := vm.Load(r.ctx)
		if res.IsError() {
			failure.Println(res.Message)
			return
		}
		fmt.Printf("name:  %s\nemail: %s\n", res.Data.Username, res.Data.Email)
		return
	}
	name, email, _ := strings.Cut(arg, " ")
	current := vm.Load(r.ctx)
	if current.IsError() {
		failure.Println(current.Message)
		return
	}
	u := current.Data
	u.Username = name
	if email != "" {
		u.Email = email
	}
	r.report(vm.Save(r.ctx, u).ErrorMessage(), "Profile saved.")
}

func (r *repl) report(errMsg, ok string) {
	if errMsg != "" {
		failure.Println(errMsg)
		return
	}
	info.Println(ok)
}
