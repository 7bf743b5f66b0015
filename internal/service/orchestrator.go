package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/apexinspect/internal/domain"
	"github.com/set-night/apexinspect/internal/protocol"
	"github.com/set-night/apexinspect/internal/report"
	"github.com/set-night/apexinspect/internal/storage"
)

// SessionStore is the persistence the orchestrator drives. *SessionService implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, id, title string, mode protocol.Mode) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateMode(ctx context.Context, id string, mode protocol.Mode) error
	UpdateImage(ctx context.Context, id, path string) error
	UpdateTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, sessionID string, role domain.Role, content string, usage *domain.UsageMetrics) (*domain.Message, error)
	GetHistory(ctx context.Context, id string) ([]domain.Message, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// ChatClient sends one inference request. *InferenceService implements it.
type ChatClient interface {
	Chat(ctx context.Context, in ChatInput) (*domain.ChatResult, error)
}

// Snapshot is the active session as the presentation layer renders it.
type Snapshot struct {
	Session  domain.Session
	Messages []domain.Message
	Focus    string
	HasImage bool
}

type OrchestratorDeps struct {
	Store   SessionStore
	Chat    ChatClient
	Images  storage.ImageStore
	Timeout time.Duration

	// NewID generates session ids; uuid.NewString when nil.
	NewID func() string
}

// Orchestrator owns the single active session of the process and sequences
// each conversational turn through the store and the inference client.
type Orchestrator struct {
	store   SessionStore
	chat    ChatClient
	images  storage.ImageStore
	timeout time.Duration
	newID   func() string

	mu       sync.Mutex
	activeID string
	messages []domain.Message
	focus    string

	// turn is held for the whole of Submit; a second submission fails fast.
	turn sync.Mutex
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{
		store:   deps.Store,
		chat:    deps.Chat,
		images:  deps.Images,
		timeout: deps.Timeout,
		newID:   newID,
	}
}

// Start creates a fresh session when none is active.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.ActiveID() != "" {
		return nil
	}
	_, err := o.NewInspection(ctx)
	return err
}

func (o *Orchestrator) ActiveID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// NewInspection starts a new session and makes it the active one.
func (o *Orchestrator) NewInspection(ctx context.Context) (*domain.Session, error) {
	id := o.newID()
	if err := o.store.CreateSession(ctx, id, domain.DefaultTitle, protocol.Default); err != nil {
		return nil, fmt.Errorf("new inspection: %w", err)
	}
	sess, err := o.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("new inspection: %w", err)
	}

	o.mu.Lock()
	o.activeID = id
	o.messages = nil
	o.mu.Unlock()

	slog.Info("inspection started", "session_id", id)
	return sess, nil
}

// SwitchTo makes an archived session active and reloads it from the store.
func (o *Orchestrator) SwitchTo(ctx context.Context, id string) (*Snapshot, error) {
	if _, err := o.store.GetSession(ctx, id); err != nil {
		return nil, fmt.Errorf("switch session: %w", err)
	}

	o.mu.Lock()
	if o.activeID != id {
		o.activeID = id
		o.messages = nil
	}
	o.mu.Unlock()

	return o.Sync(ctx)
}

// Sync reloads the active session. The in-memory log is kept only when it
// already equals the stored log; otherwise the store wins.
func (o *Orchestrator) Sync(ctx context.Context) (*Snapshot, error) {
	if err := o.Start(ctx); err != nil {
		return nil, err
	}
	id := o.ActiveID()

	sess, err := o.store.GetSession(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// removed behind our back, e.g. from the admin CLI
		slog.Warn("active session disappeared, starting a new one", "session_id", id)
		if sess, err = o.NewInspection(ctx); err != nil {
			return nil, err
		}
		id = sess.ID
	} else if err != nil {
		return nil, fmt.Errorf("sync session: %w", err)
	}

	history, err := o.store.GetHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sync history: %w", err)
	}

	o.mu.Lock()
	if o.activeID == id && !sameLog(o.messages, history) {
		o.messages = history
	}
	msgs := append([]domain.Message(nil), o.messages...)
	focus := o.focus
	o.mu.Unlock()

	return &Snapshot{
		Session:  *sess,
		Messages: msgs,
		Focus:    focus,
		HasImage: o.imageBound(ctx, sess),
	}, nil
}

func (o *Orchestrator) imageBound(ctx context.Context, sess *domain.Session) bool {
	return sess.HasImage() && o.images != nil && o.images.Exists(ctx, sess.ImagePath)
}

func sameLog(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Role != b[i].Role || a[i].Content != b[i].Content {
			return false
		}
		if (a[i].Usage == nil) != (b[i].Usage == nil) {
			return false
		}
		if a[i].Usage != nil && *a[i].Usage != *b[i].Usage {
			return false
		}
	}
	return true
}

func (o *Orchestrator) SetMode(ctx context.Context, mode protocol.Mode) error {
	if !protocol.Valid(mode) {
		return fmt.Errorf("set mode: %w: %q", domain.ErrUnknownMode, mode)
	}
	if err := o.Start(ctx); err != nil {
		return err
	}
	return o.store.UpdateMode(ctx, o.ActiveID(), mode)
}

// SetFocus stores free-text operator instructions appended to every prompt.
// They belong to the operator, not the session, and survive session switches.
func (o *Orchestrator) SetFocus(text string) {
	o.mu.Lock()
	o.focus = strings.TrimSpace(text)
	o.mu.Unlock()
}

func (o *Orchestrator) Focus() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.focus
}

func (o *Orchestrator) Rename(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ErrEmptyInput
	}
	if err := o.Start(ctx); err != nil {
		return err
	}
	return o.store.UpdateTitle(ctx, o.ActiveID(), title)
}

// UploadImage binds a new image to the active session, replacing any previous one.
func (o *Orchestrator) UploadImage(ctx context.Context, data []byte) (*domain.Session, error) {
	if o.images == nil {
		return nil, fmt.Errorf("%w: no image store configured", domain.ErrStorage)
	}
	normalized, err := NormalizeImage(data)
	if err != nil {
		return nil, err
	}
	if err := o.Start(ctx); err != nil {
		return nil, err
	}
	id := o.ActiveID()

	path, err := o.images.Save(ctx, id, normalized)
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	if err := o.store.UpdateImage(ctx, id, path); err != nil {
		return nil, err
	}
	slog.Info("image bound", "session_id", id, "path", path, "bytes", len(normalized))
	return o.store.GetSession(ctx, id)
}

// Submit runs one turn. Nothing is persisted when the session has no image.
// The user message is stored before the model is called and stays stored if
// the call fails; the assistant reply is stored only on success.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*domain.Message, error) {
	if !o.turn.TryLock() {
		return nil, domain.ErrTurnInProgress
	}
	defer o.turn.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyInput
	}

	snap, err := o.Sync(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.HasImage {
		return nil, domain.ErrNoImage
	}
	sessionID := snap.Session.ID

	image, err := o.images.Load(ctx, snap.Session.ImagePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNoImage
	}
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}

	userMsg, err := o.store.AddMessage(ctx, sessionID, domain.RoleUser, text, nil)
	if err != nil {
		return nil, err
	}
	o.appendLocal(sessionID, *userMsg)

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, err := o.chat.Chat(callCtx, ChatInput{
		SystemPrompt: protocol.Compose(snap.Session.Mode, snap.Focus),
		History:      stripUsage(snap.Messages),
		Text:         text,
		Image:        image,
	})
	if err != nil {
		slog.Error("inference failed", "error", err, "session_id", sessionID)
		return nil, err
	}

	usage := res.Usage
	reply, err := o.store.AddMessage(ctx, sessionID, domain.RoleAssistant, res.Content, &usage)
	if err != nil {
		return nil, err
	}
	o.appendLocal(sessionID, *reply)

	slog.Info("turn completed",
		"session_id", sessionID,
		"mode", snap.Session.Mode,
		"total_tokens", usage.TotalTokens,
		"latency", usage.Latency,
		"throughput", usage.Throughput,
	)
	return reply, nil
}

func (o *Orchestrator) appendLocal(sessionID string, msg domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeID == sessionID {
		o.messages = append(o.messages, msg)
	}
}

func stripUsage(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		m.Usage = nil
		out[i] = m
	}
	return out
}

// DeleteActive removes the active session with its log and image, then starts a new one.
func (o *Orchestrator) DeleteActive(ctx context.Context) (*domain.Session, error) {
	id := o.ActiveID()
	if id != "" {
		if err := o.store.DeleteSession(ctx, id); err != nil {
			return nil, err
		}
		slog.Info("session deleted", "session_id", id)
	}

	o.mu.Lock()
	o.activeID = ""
	o.messages = nil
	o.mu.Unlock()

	return o.NewInspection(ctx)
}

// Archive lists sessions eligible for resumption.
func (o *Orchestrator) Archive(ctx context.Context) ([]domain.Session, error) {
	return o.store.ListSessions(ctx)
}

// Report renders the active session log as a PDF.
func (o *Orchestrator) Report(ctx context.Context) ([]byte, error) {
	snap, err := o.Sync(ctx)
	if err != nil {
		return nil, err
	}
	return report.Generate(snap.Messages)
}

// UserMessage flattens an orchestrator error into operator-facing text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoImage):
		return "⚠️ ERR: NO VISUAL INPUT DETECTED. Upload a component photo first."
	case errors.Is(err, domain.ErrTurnInProgress):
		return "⏳ Previous request is still processing."
	case errors.Is(err, domain.ErrEmptyInput):
		return "⚠️ Empty input."
	case errors.Is(err, domain.ErrUnknownMode):
		return "⚠️ Unknown protocol."
	case errors.Is(err, domain.ErrUnsupportedImage):
		return "⚠️ Unsupported image format. Send a JPG or PNG photo."
	case errors.Is(err, domain.ErrSessionNotFound):
		return "⚠️ Session not found."
	case errors.Is(err, domain.ErrNotConfigured):
		return "SYSTEM FAILURE: inference endpoint is not configured (set INFERENCE_API_KEY)."
	default:
		return "SYSTEM FAILURE: " + snippet([]byte(err.Error()), 300)
	}
}
