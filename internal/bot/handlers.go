package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"setlistbot/internal/shared"
	"setlistbot/internal/tasks"
)

const startReply = "🎵 Hi! Ask me something like:\n" +
	"• 'Make a playlist from the Coldplay show in São Paulo 2022'\n" +
	"• 'I want the latest Metallica setlist'\n" +
	"I'll look the setlist up on setlist.fm and build the playlist on Spotify."

const noArtistReply = "I couldn't work out the artist. Try something like: 'playlist for Coldplay in SP 2022'."

// Handler processes incoming updates: commands get canned replies, plain text
// runs the pipeline and narrates its progress back into the chat.
type Handler struct {
	engine tasks.Engine
	sender Sender
	logger *log.Logger
}

// NewHandler creates a Handler around the pipeline engine and message sender.
func NewHandler(engine tasks.Engine, sender Sender, logger *log.Logger) *Handler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Handler{
		engine: engine,
		sender: sender,
		logger: logger,
	}
}

// HandleUpdate dispatches one Telegram update. Updates without a text message
// are ignored.
func (h *Handler) HandleUpdate(ctx context.Context, update Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	logger := shared.WithLogger(h.logger, "chat", chatID, "request", shared.GenerateID())

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, chatID, text)
		return
	}

	h.handleText(ctx, chatID, text, logger)
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, text string) {
	command := strings.SplitN(text, " ", 2)[0]
	// Telegram appends @botname in group chats
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start", "/help":
		h.reply(ctx, chatID, startReply)
	default:
		h.reply(ctx, chatID, "I don't know that command. Send /start for examples.")
	}
}

// handleText runs the pipeline for one message and reports its terminal
// outcome. This is the catch-all boundary: any error or panic escaping the
// pipeline is logged with full context and reported to the user with the
// detail inlined.
func (h *Handler) handleText(ctx context.Context, chatID int64, text string, logger *log.Logger) {
	updates := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			h.narrate(ctx, chatID, u)
		}
	}()

	result, err := func() (result *tasks.PipelineResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in pipeline run", "panic", r)
				err = fmt.Errorf("%v", r)
			}
		}()
		return h.engine.Run(ctx, text, updates)
	}()
	close(updates)
	<-done

	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		h.reply(ctx, chatID, fmt.Sprintf("😕 Something went wrong: %v", err))
		return
	}

	logger.Info("pipeline run finished", "outcome", result.Outcome)
	h.reportOutcome(ctx, chatID, result)
}

// narrate forwards selected pipeline phases to the chat so the user sees the
// bot working during the slower stages.
func (h *Handler) narrate(ctx context.Context, chatID int64, update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ExtractFields:
		h.reply(ctx, chatID, "🔎 "+update.Message)
	case tasks.AssemblePlaylist:
		h.reply(ctx, chatID, "🎧 "+update.Message)
	}
}

// reportOutcome maps each terminal pipeline state to its user-facing reply.
func (h *Handler) reportOutcome(ctx context.Context, chatID int64, result *tasks.PipelineResult) {
	switch result.Outcome {
	case tasks.OutcomeNoArtist:
		h.reply(ctx, chatID, noArtistReply)

	case tasks.OutcomeNoSetlist:
		msg := "⚠️ No setlist found."
		if filters := result.Filters(); filters != "" {
			msg += fmt.Sprintf(" (filters: %s)", filters)
		}
		h.reply(ctx, chatID, msg)

	case tasks.OutcomeAssemblyFailed:
		h.reply(ctx, chatID, "Something failed while creating the playlist. Please try again later.")

	case tasks.OutcomeCreated:
		msg := fmt.Sprintf("✅ Done! Your playlist:\n%s", result.Playlist.URL)
		if result.Skipped > 0 {
			msg += fmt.Sprintf("\n(%d songs had no Spotify match and were skipped)", result.Skipped)
		}
		h.reply(ctx, chatID, msg)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.sender.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Warn("failed to send reply", "chat", chatID, "error", err)
	}
}
