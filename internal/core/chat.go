package core

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/chatapi"
	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

type ChatState struct {
	Conversation  models.Conversation
	Messages      []models.ChatMessage
	Models        []models.AiModel
	SelectedModel models.AiModel
	Sending       bool
}

// ChatViewModel drives the conversation screen: it watches the messages of
// the open conversation and runs the send flow.
type ChatViewModel struct {
	deps   Deps
	logger *zap.Logger
	scope  *Scope
	state  *Observable[State[ChatState]]

	mu        sync.Mutex
	stopWatch context.CancelFunc
	// guarded by the state lock: only touched inside state.Update
	inflight int
}

func NewChatViewModel(parent context.Context, deps Deps) *ChatViewModel {
	deps = deps.withDefaults()
	return &ChatViewModel{
		deps:   deps,
		logger: deps.Logger.Named("chat"),
		scope:  NewScope(parent),
		state: NewObservable(State[ChatState]{Data: ChatState{
			Models:        deps.Catalog.Models,
			SelectedModel: deps.Catalog.Default(),
		}}),
	}
}

func (vm *ChatViewModel) State() *Observable[State[ChatState]] {
	return vm.state
}

// LoadConversation fetches the conversation and starts watching its
// messages, replacing any previous watch.
func (vm *ChatViewModel) LoadConversation(ctx context.Context, conversationID string) result.Result[models.Conversation] {
	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	res := vm.deps.Store.GetConversation(ctx, conversationID)
	if res.IsError() {
		vm.setError(res.Message)
		return res
	}
	vm.watch(res.Data)
	return res
}

func (vm *ChatViewModel) watch(conv models.Conversation) {
	vm.mu.Lock()
	if vm.stopWatch != nil {
		vm.stopWatch()
	}
	watchCtx, stop := context.WithCancel(vm.scope.Context())
	vm.stopWatch = stop
	vm.mu.Unlock()

	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		s.Data.Conversation = conv
		s.Data.Messages = nil
		s.IsLoading = true
		return s
	})

	src := vm.deps.Store.ObserveMessages(watchCtx, conv.ID)
	messages := stream.Apply(src, vm.deps.Policy, []models.ChatMessage{}, func(ev result.Result[[]models.ChatMessage]) {
		vm.logger.Warn("Message stream failed, showing empty list",
			zap.String("conversation_id", conv.ID), zap.String("error", ev.Message))
	})

	started := vm.scope.Go(func(context.Context) {
		defer messages.Close()
		for ev := range messages.C() {
			vm.applyMessages(conv.ID, ev)
		}
	})
	if !started {
		messages.Close()
	}
}

func (vm *ChatViewModel) applyMessages(conversationID string, ev result.Result[[]models.ChatMessage]) {
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		if s.Data.Conversation.ID != conversationID {
			return s
		}
		switch ev.Status {
		case result.StatusLoading:
			s.IsLoading = true
		case result.StatusSuccess:
			s.Data.Messages = ev.Data
			s.IsLoading = s.Data.Sending
		case result.StatusError:
			s.Error = ev.Message
			s.IsLoading = s.Data.Sending
		}
		return s
	})
}

// SendMessage stores the user's message, asks the completion service for a
// reply over the whole history and stores that too. A failed completion is
// stored as an error message and returned as the Error variant.
func (vm *ChatViewModel) SendMessage(ctx context.Context, content, conversationID string) result.Result[models.ChatMessage] {
	content = strings.TrimSpace(content)
	if content == "" {
		return result.FromError[models.ChatMessage](result.Validation("message is empty"))
	}
	if conversationID == "" {
		return result.FromError[models.ChatMessage](result.Validation("conversation id is required"))
	}

	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	release, err := vm.deps.Sequencer.Acquire(ctx, conversationID)
	if err != nil {
		return result.FromError[models.ChatMessage](err)
	}
	defer release()

	vm.beginSend()
	defer vm.endSend()

	userMsg := models.ChatMessage{
		ID:             uuid.NewString(),
		Content:        content,
		IsFromUser:     true,
		Timestamp:      vm.deps.now(),
		ConversationID: conversationID,
	}
	if res := vm.deps.Store.AddMessage(ctx, userMsg); res.IsError() {
		vm.setError(res.Message)
		return result.Forward[models.ChatMessage](res)
	}

	model := vm.selectedModel()
	resp := vm.deps.Client.SendChatRequest(ctx, vm.history(ctx, userMsg), model.ID, model.GenerationTemperature(), model.MaxTokens)

	reply := models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
	}
	if resp.IsError() {
		vm.logger.Warn("Completion failed",
			zap.String("conversation_id", conversationID),
			zap.Int("code", resp.Code),
			zap.String("error", resp.Message))
		reply.Content = resp.Message
		reply.IsError = true
	} else {
		reply.Content = resp.Data.Message.Content
	}
	reply.Timestamp = vm.deps.now()

	if res := vm.deps.Store.AddMessage(ctx, reply); res.IsError() {
		vm.setError(res.Message)
		return result.Forward[models.ChatMessage](res)
	}

	if resp.IsError() {
		vm.setError(resp.Message)
		return result.Forward[models.ChatMessage](resp)
	}
	return result.Success(reply)
}

// CreateNewConversation creates a conversation titled after
// initialMessage, opens it and sends initialMessage as its first message.
// An empty userID falls back to the signed in user.
func (vm *ChatViewModel) CreateNewConversation(ctx context.Context, userID, initialMessage string) result.Result[string] {
	content := strings.TrimSpace(initialMessage)
	if content == "" {
		return result.FromError[string](result.Validation("message is empty"))
	}
	if userID == "" {
		if u, ok := vm.deps.Session.CurrentUser(); ok {
			userID = u.ID
		}
	}
	if userID == "" {
		return result.FromError[string](result.Permission(errSignInFirst))
	}

	now := vm.deps.now()
	created := vm.deps.Store.CreateConversation(ctx, models.Conversation{
		Title:     DeriveTitle(content),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if created.IsError() {
		vm.setError(created.Message)
		return created
	}

	if res := vm.LoadConversation(ctx, created.Data); res.IsError() {
		return result.Forward[string](res)
	}
	// a failed reply is already stored and surfaced in the state; the
	// conversation itself exists
	vm.SendMessage(ctx, content, created.Data)
	return created
}

// RenameConversation updates the title of the open conversation.
func (vm *ChatViewModel) RenameConversation(ctx context.Context, title string) result.Result[result.Unit] {
	title = strings.TrimSpace(title)
	if title == "" {
		return result.FromError[result.Unit](result.Validation("title is empty"))
	}
	conv := vm.state.Get().Data.Conversation
	if conv.ID == "" {
		return result.FromError[result.Unit](result.Validation("no conversation is open"))
	}
	conv.Title = title
	conv.UpdatedAt = vm.deps.now()

	res := vm.deps.Store.UpdateConversation(ctx, conv)
	if res.IsError() {
		vm.setError(res.Message)
		return res
	}
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		if s.Data.Conversation.ID == conv.ID {
			s.Data.Conversation.Title = title
		}
		return s
	})
	return res
}

// ClearConversation deletes every message of the open conversation.
func (vm *ChatViewModel) ClearConversation(ctx context.Context) result.Result[result.Unit] {
	id := vm.state.Get().Data.Conversation.ID
	if id == "" {
		return result.FromError[result.Unit](result.Validation("no conversation is open"))
	}
	res := vm.deps.Store.ClearMessages(ctx, id)
	if res.IsError() {
		vm.setError(res.Message)
	}
	return res
}

func (vm *ChatViewModel) DeleteMessage(ctx context.Context, messageID string) result.Result[result.Unit] {
	res := vm.deps.Store.DeleteMessage(ctx, messageID)
	if res.IsError() {
		vm.setError(res.Message)
	}
	return res
}

// LoadModels merges the server's model list into the catalog. On failure
// the catalog alone is offered.
func (vm *ChatViewModel) LoadModels(ctx context.Context) result.Result[[]models.AiModel] {
	ctx, cancel := vm.scope.Bind(ctx)
	defer cancel()

	res := vm.deps.Client.ListModels(ctx)
	if res.IsError() {
		vm.logger.Warn("Could not list remote models", zap.String("error", res.Message))
	}
	list := vm.deps.Catalog.Merge(res.GetOrZero())

	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		s.Data.Models = list
		if _, ok := findModel(list, s.Data.SelectedModel.ID); !ok {
			s.Data.SelectedModel = vm.deps.Catalog.Default()
		}
		return s
	})
	if res.IsError() {
		return result.Forward[[]models.AiModel](res)
	}
	return result.Success(list)
}

func (vm *ChatViewModel) SelectModel(id string) result.Result[models.AiModel] {
	m, ok := findModel(vm.state.Get().Data.Models, id)
	if !ok {
		if m, ok = vm.deps.Catalog.Find(id); !ok {
			return result.FromError[models.AiModel](result.Validation("unknown model: " + id))
		}
	}
	m = m.WithDefaults()
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		s.Data.SelectedModel = m
		return s
	})
	return result.Success(m)
}

// Close stops the message watch and cancels in-flight sends.
func (vm *ChatViewModel) Close() {
	vm.scope.Close()
}

func (vm *ChatViewModel) selectedModel() models.AiModel {
	m := vm.state.Get().Data.SelectedModel
	if m.ID == "" {
		m = vm.deps.Catalog.Default()
	}
	return m.WithDefaults()
}

// history is the conversation as stored after userMsg was written, merged
// with the observed list and userMsg itself, oldest first. Error messages are
// not sent back to the model.
func (vm *ChatViewModel) history(ctx context.Context, userMsg models.ChatMessage) []chatapi.Message {
	var observed []models.ChatMessage
	if st := vm.state.Get().Data; st.Conversation.ID == userMsg.ConversationID {
		observed = st.Messages
	}
	stored, err := vm.fetchMessages(ctx, userMsg.ConversationID)
	if err != nil {
		vm.logger.Warn("Could not read conversation history, using observed messages",
			zap.String("conversation_id", userMsg.ConversationID), zap.Error(err))
	}

	merged := mergeMessages(stored, observed, []models.ChatMessage{userMsg})
	out := make([]chatapi.Message, 0, len(merged))
	for _, m := range merged {
		if m.IsError {
			continue
		}
		role := chatapi.RoleAssistant
		if m.IsFromUser {
			role = chatapi.RoleUser
		}
		out = append(out, chatapi.Message{Role: role, Content: m.Content})
	}
	return out
}

// fetchMessages reads the first snapshot of a conversation's messages.
func (vm *ChatViewModel) fetchMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	messages := vm.deps.Store.ObserveMessages(ctx, conversationID)
	defer messages.Close()
	for ev := range messages.C() {
		switch ev.Status {
		case result.StatusSuccess:
			return ev.Data, nil
		case result.StatusError:
			return nil, ev.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("message stream closed before the first snapshot")
}

func (vm *ChatViewModel) beginSend() {
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		vm.inflight++
		s.IsLoading = true
		s.Data.Sending = true
		s.Error = ""
		return s
	})
}

func (vm *ChatViewModel) endSend() {
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		vm.inflight--
		s.Data.Sending = vm.inflight > 0
		if !s.Data.Sending {
			s.IsLoading = false
		}
		return s
	})
}

func (vm *ChatViewModel) setError(msg string) {
	vm.state.Update(func(s State[ChatState]) State[ChatState] {
		s.IsLoading = s.Data.Sending
		s.Error = msg
		return s
	})
}

// mergeMessages keeps the first occurrence of each id, sorted by timestamp.
func mergeMessages(lists ...[]models.ChatMessage) []models.ChatMessage {
	var out []models.ChatMessage
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, m := range list {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func findModel(list []models.AiModel, id string) (models.AiModel, bool) {
	for _, m := range list {
		if m.ID == id {
			return m, true
		}
	}
	return models.AiModel{}, false
}
