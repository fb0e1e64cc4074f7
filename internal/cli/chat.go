// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL over the conversation store.
//
// Plain lines are sent to the active conversation and the reply is printed
// once generation finishes. Lines starting with a slash are commands:
//
//	/new [title]         Create and select a conversation
//	/list                List conversations
//	/use <conv>          Select a conversation by id or position
//	/rename <title>      Rename the active conversation
//	/delete [conv]       Delete a conversation (default: active)
//	/regen [message-id]  Regenerate a reply (default: last assistant reply)
//	/search <query>      Search titles and message content
//	/export [fmt] [dir]  Export the active conversation
//	/help                Show commands
//	/quit, /q            Exit
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstore/internal/config"
	"github.com/jeranaias/chatstore/internal/export"
	"github.com/jeranaias/chatstore/internal/model"
)

// =============================================================================
// LINE EDITING
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads one line. Non-blank input is added to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession executes REPL lines against the store.
type chatSession struct {
	app *App
	out io.Writer
}

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

// handle executes one input line.
func (s *chatSession) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return s.send(line)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	st := s.app.Store

	switch name {
	case "quit", "q", "exit":
		return errQuit
	case "help", "h", "?":
		s.help()
	case "new":
		id := st.CreateConversation(rest)
		fmt.Fprintln(s.out, RenderConditional(SuccessStyle, "Started "+id))
	case "list", "ls":
		renderList(s.out, st.Conversations(), st.Snapshot().CurrentConversationID)
	case "use":
		if rest == "" {
			return usageErrorf("usage: /use <conversation>")
		}
		conv, err := resolveConversation(st, rest)
		if err != nil {
			return err
		}
		st.SelectConversation(conv.ID)
		st.UpdateUIState(model.UIStatePatch{SelectedConversationID: &conv.ID})
		renderConversation(s.out, conv, st.Settings().ShowTimestamps)
	case "rename":
		conv, err := resolveConversation(st, "")
		if err != nil {
			return err
		}
		if rest == "" {
			return usageErrorf("usage: /rename <title>")
		}
		st.UpdateConversation(conv.ID, model.ConversationPatch{Title: &rest})
	case "delete", "rm":
		conv, err := resolveConversation(st, rest)
		if err != nil {
			return err
		}
		if err := st.DeleteConversation(ctx, conv.ID); err != nil {
			if msg := st.Snapshot().Error; msg != "" {
				fmt.Fprintln(s.out, RenderConditional(WarningStyle, msg))
				st.ClearError()
			}
			return err
		}
		fmt.Fprintln(s.out, RenderConditional(SuccessStyle, "Deleted "+conv.ID))
	case "regen":
		return s.regenerate(rest)
	case "search":
		st.UpdateUIState(model.UIStatePatch{SearchQuery: &rest})
		renderList(s.out, st.Search(rest), "")
	case "export":
		return s.export(rest)
	default:
		return usageErrorf("unknown command /%s (try /help)", name)
	}
	return nil
}

func (s *chatSession) send(text string) error {
	st := s.app.Store
	conv, err := resolveConversation(st, "")
	if err != nil {
		return err
	}
	// The REPL context is cancelled on exit; replies already requested
	// still land in the store.
	placeholder := st.SendMessage(context.Background(), text, conv.ID)
	if placeholder == "" {
		return nil
	}
	fmt.Fprintln(s.out, RenderConditional(DimStyle, "Thinking..."))
	return s.printReply(conv.ID, placeholder)
}

func (s *chatSession) regenerate(messageID string) error {
	st := s.app.Store
	conv, err := resolveConversation(st, "")
	if err != nil {
		return err
	}
	if messageID == "" {
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].CanRegenerate {
				messageID = conv.Messages[i].ID
				break
			}
		}
	}
	msg, ok := conv.GetMessageByID(messageID)
	if !ok {
		return messageNotFound(messageID)
	}
	if msg.Role != model.RoleAssistant || !msg.CanRegenerate {
		return usageErrorf("message %s cannot be regenerated", msg.ID)
	}
	st.RegenerateMessage(context.Background(), messageID)
	return s.printReply(conv.ID, messageID)
}

func (s *chatSession) printReply(convID, messageID string) error {
	st := s.app.Store
	st.Wait()
	conv, ok := st.Conversation(convID)
	if !ok {
		return nil
	}
	msg, ok := conv.GetMessageByID(messageID)
	if !ok {
		return nil
	}
	fmt.Fprintln(s.out, RenderRole(msg.Role))
	if msg.Type == model.TypeError {
		fmt.Fprintln(s.out, RenderConditional(ErrorStyle, msg.Content))
		return nil
	}
	fmt.Fprint(s.out, renderMarkdown(msg.Content))
	return nil
}

func (s *chatSession) export(args string) error {
	fields := strings.Fields(args)
	format, dir := string(export.FormatMarkdown), "."
	if len(fields) > 0 {
		format = fields[0]
	}
	if len(fields) > 1 {
		dir = fields[1]
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}
	conv, err := resolveConversation(s.app.Store, "")
	if err != nil {
		return err
	}
	art, ok := s.app.Store.Export(conv.ID, f)
	if !ok {
		return errors.Errorf("export %s: failed", conv.ID)
	}
	path, err := export.WriteArtifact(dir, art)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, RenderConditional(SuccessStyle, "Exported to "+path))
	return nil
}

func (s *chatSession) help() {
	fmt.Fprintln(s.out, RenderConditional(TitleStyle, "Commands"))
	for _, line := range [][2]string{
		{"/new [title]", "Create and select a conversation"},
		{"/list", "List conversations"},
		{"/use <conv>", "Select a conversation by id or position"},
		{"/rename <title>", "Rename the active conversation"},
		{"/delete [conv]", "Delete a conversation"},
		{"/regen [msg-id]", "Regenerate the last assistant reply"},
		{"/search <query>", "Search titles and message content"},
		{"/export [fmt] [dir]", "Export the active conversation"},
		{"/quit", "Exit"},
	} {
		fmt.Fprintln(s.out, RenderLabel(line[0])+"  "+line[1])
	}
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), app, cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, app *App, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startBackground(ctx, app)

	session := &chatSession{app: app, out: out}
	input := NewChatCLI()
	defer input.Close()

	if IsTTY() {
		fmt.Fprintln(out, RenderConditional(TitleStyle, "chatstore")+" "+RenderConditional(DimStyle, "type /help for commands"))
	}
	if conv, ok := app.Store.Current(); ok {
		fmt.Fprintln(out, RenderConditional(DimStyle, "Active: "+conv.Title))
	}

	for {
		line, err := input.ReadInput(RenderConditional(PromptStyle, "chat> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if err := session.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(out, RenderConditional(ErrorStyle, "[Error]"), err)
		}
	}
}

// startBackground serves metrics and follows config edits until ctx ends.
func startBackground(ctx context.Context, app *App) {
	log := app.Log.WithField("component", "chat")

	if app.Metrics != nil {
		go func() {
			if err := app.Metrics.Serve(ctx, app.Config.Metrics.Addr); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	path := app.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	w, err := config.NewWatcher(path,
		func(cfg *config.Config) {
			app.Store.UpdateSettings(defaultsPatch(cfg.Defaults))
			log.WithField("model", cfg.Defaults.Model).Info("settings reloaded from config")
		},
		func(err error) {
			log.WithError(err).Warn("config reload failed")
		},
	)
	if err != nil {
		log.WithError(err).Debug("config watch unavailable")
		return
	}
	go w.Run(ctx)
}
