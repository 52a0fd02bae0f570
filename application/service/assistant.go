package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/helixml/damkit/domain/chat"
	"github.com/helixml/damkit/domain/folder"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/infrastructure/provider"
	"github.com/helixml/damkit/internal/prompts"
)

// MaxToolRounds bounds how many times the model may call tools per request.
const MaxToolRounds = 3

// ErrAssistantUnavailable is returned when no chat model is configured.
var ErrAssistantUnavailable = errors.New("no chat provider configured")

// ChatRequest is one user turn. Messages, when given, replace the stored
// history; otherwise Message is appended to it.
type ChatRequest struct {
	SessionID    string
	Messages     []chat.Message
	Message      string
	UploadedFile *chat.UploadedFile
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	SessionID string
	Response  string
	// Direct is set when the reply was produced without the model.
	Direct bool
	Rounds int
}

// Assistant answers chat turns, short-circuiting list, search, and
// duplicate-folder requests and sending the rest through a tool loop.
type Assistant struct {
	model    provider.TextGenerator
	tools    *Tools
	folders  *Folder
	assets   *Asset
	sessions *ChatSessions
	prompts  prompts.Set
	logger   *slog.Logger
	now      func() time.Time
}

// NewAssistant creates a new Assistant. sessions may be nil, in which case
// nothing is persisted between requests.
func NewAssistant(
	model provider.TextGenerator,
	tools *Tools,
	folders *Folder,
	assets *Asset,
	sessions *ChatSessions,
	set prompts.Set,
	logger *slog.Logger,
) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		model:    model,
		tools:    tools,
		folders:  folders,
		assets:   assets,
		sessions: sessions,
		prompts:  set,
		logger:   logger,
		now:      time.Now,
	}
}

// Chat answers one turn for the principal.
func (a *Assistant) Chat(ctx context.Context, p tenant.Principal, req ChatRequest) (ChatReply, error) {
	sess := chat.NewSession(p.TenantID(), p.UserID(), a.now())
	if a.sessions != nil {
		resumed, err := a.sessions.Resume(ctx, p, req.SessionID)
		if err != nil {
			return ChatReply{}, err
		}
		sess = resumed
	}
	if req.UploadedFile != nil {
		file := *req.UploadedFile
		sess.PendingFile = &file
	}

	history := a.conversation(sess, req)
	text := lastUserText(history)

	reply, err := a.answer(ctx, p, &sess, history, text)
	if err != nil {
		return ChatReply{}, err
	}
	reply.SessionID = sess.ID

	if sess.PendingFile != nil {
		lower := strings.ToLower(reply.Response)
		if !strings.Contains(lower, "file") && !strings.Contains(lower, "upload") {
			reply.Response += "\n\n" + a.prompts.AttachmentHint(sess.PendingFile.Name)
		}
	}

	if a.sessions != nil {
		now := a.now()
		sess.Messages = history
		sess.Append(chat.RoleAssistant, reply.Response, now)
		if err := a.sessions.Save(ctx, sess); err != nil {
			a.logger.Warn("chat session not saved",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return reply, nil
}

// conversation returns the user-visible history for this turn.
func (a *Assistant) conversation(sess chat.Session, req ChatRequest) []chat.Message {
	now := a.now()
	if len(req.Messages) > 0 {
		out := make([]chat.Message, len(req.Messages))
		for i, m := range req.Messages {
			out[i] = chat.Message{Role: chat.CoerceRole(string(m.Role)), Content: m.Content, Timestamp: m.Timestamp}
			if out[i].Timestamp.IsZero() {
				out[i].Timestamp = now
			}
		}
		return out
	}
	out := append([]chat.Message(nil), sess.Messages...)
	if req.Message != "" {
		out = append(out, chat.Message{Role: chat.RoleUser, Content: req.Message, Timestamp: now})
	}
	return out
}

func lastUserText(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func (a *Assistant) answer(ctx context.Context, p tenant.Principal, sess *chat.Session, history []chat.Message, text string) (ChatReply, error) {
	intent := chat.Classify(text)
	switch intent.Kind {
	case chat.IntentSearchAssets:
		result, err := a.assets.Search(ctx, p.TenantID(), intent.Query, 0)
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Response: renderSearch(result), Direct: true}, nil

	case chat.IntentListAssets:
		listing, err := a.assets.List(ctx, p.TenantID(), ListParams{})
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Response: renderAssets(listing), Direct: true}, nil

	case chat.IntentListFolders:
		listing, err := a.folders.List(ctx, p.TenantID())
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Response: renderFolders(listing), Direct: true}, nil

	case chat.IntentCreateFolder:
		if intent.FolderName != "" {
			existing, found, err := a.folders.CheckDuplicate(ctx, p.TenantID(), intent.FolderName)
			if err != nil {
				return ChatReply{}, err
			}
			if found {
				dup := folder.NewDuplicateError(intent.FolderName, existing.Name(), a.now().Year())
				return ChatReply{Response: renderDuplicate(dup), Direct: true}, nil
			}
		}
	}

	return a.runTools(ctx, p, sess, history)
}

// runTools sends the conversation to the model and executes requested
// tools for at most MaxToolRounds rounds.
func (a *Assistant) runTools(ctx context.Context, p tenant.Principal, sess *chat.Session, history []chat.Message) (ChatReply, error) {
	if a.model == nil {
		return ChatReply{}, ErrAssistantUnavailable
	}

	messages := make([]provider.Message, 0, len(history)+1)
	messages = append(messages, provider.SystemMessage(a.prompts.AssistantSystem(sess.PendingFile)))
	for _, m := range history {
		if m.Role == chat.RoleAssistant {
			messages = append(messages, provider.AssistantMessage(m.Content))
		} else {
			messages = append(messages, provider.UserMessage(m.Content))
		}
	}

	tools := a.tools.Definitions()
	resp, err := a.complete(ctx, messages, tools)
	if err != nil {
		return ChatReply{}, err
	}

	rounds := 0
	for rounds < MaxToolRounds {
		calls := resp.ToolCalls()
		if len(calls) == 0 {
			break
		}
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + strconv.Itoa(i)
			}
		}

		messages = append(messages, provider.AssistantToolCallMessage(resp.Content(), calls))
		for _, call := range calls {
			result := a.tools.Execute(ctx, p, call.Name, call.Arguments)
			a.logger.Debug("tool executed",
				slog.String("tool", call.Name),
				slog.String("call_id", call.ID),
				slog.Int("round", rounds+1),
			)
			if call.Name == ToolUploadSelectedAsset && !isToolError(result) {
				sess.PendingFile = nil
			}
			messages = append(messages, provider.ToolResultMessage(call.ID, call.Name, result))
		}

		rounds++
		resp, err = a.complete(ctx, messages, tools)
		if err != nil {
			return ChatReply{}, err
		}
	}

	text := resp.Content()
	if strings.TrimSpace(text) == "" {
		text = a.prompts.Assistant.Fallback
	}
	return ChatReply{Response: text, Rounds: rounds}, nil
}

func (a *Assistant) complete(ctx context.Context, messages []provider.Message, tools []provider.Tool) (provider.ChatCompletionResponse, error) {
	resp, err := a.model.ChatCompletion(ctx, provider.NewChatCompletionRequest(messages).WithTools(tools))
	if err != nil {
		return provider.ChatCompletionResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

func isToolError(result string) bool {
	var probe struct {
		Error string `json:"error"`
	}
	return json.Unmarshal([]byte(result), &probe) == nil && probe.Error != ""
}

func renderDuplicate(dup *folder.DuplicateError) string {
	var b strings.Builder
	b.WriteString(dup.Error())
	b.WriteString("\n\nSuggested names:\n")
	for _, s := range dup.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "\nSay \"Create folder called '%s'\" to use one, or \"Show me all my folders\" to see existing ones.", dup.Suggestions[0])
	return b.String()
}

func renderFolders(listing FolderListing) string {
	if listing.TotalCount == 0 {
		return listing.Message
	}
	var b strings.Builder
	b.WriteString(listing.Message)
	b.WriteString("\n")
	for i, s := range listing.Folders {
		fmt.Fprintf(&b, "\n%d. **%s**\n   %s\n   Assets: %d\n   Created: %s\n",
			i+1, s.Folder.Name(), describe(s.Folder.Description()), s.AssetCount, s.Folder.CreatedAt().Format("1/2/2006"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderAssets(listing AssetListing) string {
	if len(listing.Assets) == 0 {
		return "You don't have any assets yet in your workspace."
	}
	views := listing.Assets
	header := fmt.Sprintf("**Your Assets (%d total)**", listing.TotalCount)
	return header + "\n" + renderAssetLines(views)
}

func renderSearch(result SearchResult) string {
	if len(result.Hits) == 0 {
		return result.Message
	}
	views := make([]AssetView, len(result.Hits))
	for i, h := range result.Hits {
		views[i] = h.AssetView
	}
	return result.Message + "\n" + renderAssetLines(views)
}

func renderAssetLines(views []AssetView) string {
	var b strings.Builder
	for i, v := range views {
		folderName := "No folder"
		if v.Folder != nil {
			folderName = v.Folder.Name()
		}
		fileType := v.Asset.FileType()
		if fileType == "" {
			fileType = "Unknown type"
		}
		fmt.Fprintf(&b, "\n%d. **%s**\n   Folder: %s\n   Type: %s\n   Size: %s KB\n   Created: %s\n",
			i+1, v.Asset.Name(), folderName, fileType,
			strconv.FormatFloat(float64(v.Asset.FileSize())/1024, 'f', 1, 64),
			v.Asset.CreatedAt().Format("1/2/2006"))
	}
	return strings.TrimRight(b.String(), "\n")
}
