// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - One-shot subcommands over the conversation store.

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstore/internal/export"
	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/store"
)

// =============================================================================
// RESOLUTION HELPERS
// =============================================================================

// resolveConversation accepts a conversation id or its 1-based position in
// the list. An empty ref means the active conversation.
func resolveConversation(st *store.Store, ref string) (model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if conv, ok := st.Current(); ok {
			return conv, nil
		}
		return model.Conversation{}, usageErrorf("no active conversation")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		convs := st.Conversations()
		if n >= 1 && n <= len(convs) {
			return convs[n-1], nil
		}
	}
	if conv, ok := st.Conversation(ref); ok {
		return conv, nil
	}
	return model.Conversation{}, &store.ConversationError{Kind: store.KindNotFound, ID: ref}
}

// selectForMessage activates the conversation holding messageID, or ref
// when given, and returns it.
func selectForMessage(st *store.Store, ref, messageID string) (model.Conversation, error) {
	if ref != "" {
		conv, err := resolveConversation(st, ref)
		if err != nil {
			return conv, err
		}
		st.SelectConversation(conv.ID)
		return conv, nil
	}
	for _, c := range st.Conversations() {
		if c.MessageIndex(messageID) >= 0 {
			st.SelectConversation(c.ID)
			return c, nil
		}
	}
	return model.Conversation{}, messageNotFound(messageID)
}

// printReply waits for pending generations and prints the message.
func printReply(w io.Writer, st *store.Store, convID, messageID string) error {
	st.Wait()
	conv, ok := st.Conversation(convID)
	if !ok {
		return &store.ConversationError{Kind: store.KindNotFound, ID: convID}
	}
	msg, ok := conv.GetMessageByID(messageID)
	if !ok {
		return messageNotFound(messageID)
	}
	renderMessage(w, msg, st.Settings().ShowTimestamps, GetTerminalWidth())
	return nil
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderList(cmd.OutOrStdout(), app.Store.Conversations(), app.Store.Snapshot().CurrentConversationID)
			return nil
		},
	}
}

func newNewCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "new [title...]",
		Short: "Create a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := app.Store.CreateConversation(strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newShowCommand(app *App) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "show [conversation]",
		Short: "Print a conversation transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := resolveConversation(app.Store, firstArg(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !render {
				renderConversation(out, conv, app.Store.Settings().ShowTimestamps)
				return nil
			}
			art, ok := app.Store.Export(conv.ID, export.FormatMarkdown)
			if !ok {
				return errors.Errorf("render %s: export failed", conv.ID)
			}
			fmt.Fprint(out, renderMarkdown(string(art.Content)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Render the transcript as formatted markdown")
	return cmd
}

func newRenameCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation> <title...>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := resolveConversation(app.Store, args[0])
			if err != nil {
				return err
			}
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return usageErrorf("title must not be blank")
			}
			app.Store.UpdateConversation(conv.ID, model.ConversationPatch{Title: &title})
			fmt.Fprintln(cmd.OutOrStdout(), RenderConditional(SuccessStyle, "Renamed "+conv.ID))
			return nil
		},
	}
}

func newPinCommand(app *App, pinned bool) *cobra.Command {
	use, short := "pin", "Pin a conversation"
	if !pinned {
		use, short = "unpin", "Unpin a conversation"
	}
	return &cobra.Command{
		Use:   use + " <conversation>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := resolveConversation(app.Store, args[0])
			if err != nil {
				return err
			}
			app.Store.UpdateConversation(conv.ID, model.ConversationPatch{IsPinned: model.Ptr(pinned)})
			fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
			return nil
		},
	}
}

func newRmCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <conversation>",
		Aliases: []string{"delete"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := resolveConversation(app.Store, args[0])
			if err != nil {
				return err
			}
			if err := app.Store.DeleteConversation(cmd.Context(), conv.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderConditional(SuccessStyle, "Deleted "+conv.ID))
			return nil
		},
	}
}

// =============================================================================
// MESSAGE COMMANDS
// =============================================================================

func newSendCommand(app *App) *cobra.Command {
	var convRef string
	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send a message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := resolveConversation(app.Store, convRef)
			if err != nil {
				return err
			}
			placeholder := app.Store.SendMessage(cmd.Context(), strings.Join(args, " "), conv.ID)
			if placeholder == "" {
				return usageErrorf("message must not be blank")
			}
			return printReply(cmd.OutOrStdout(), app.Store, conv.ID, placeholder)
		},
	}
	cmd.Flags().StringVarP(&convRef, "conversation", "c", "", "Target conversation (default: most recent)")
	return cmd
}

func newRegenerateCommand(app *App) *cobra.Command {
	var convRef string
	cmd := &cobra.Command{
		Use:   "regenerate <message-id>",
		Short: "Replace an assistant reply with a fresh one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := selectForMessage(app.Store, convRef, args[0])
			if err != nil {
				return err
			}
			msg, ok := conv.GetMessageByID(args[0])
			if !ok {
				return messageNotFound(args[0])
			}
			if msg.Role != model.RoleAssistant || !msg.CanRegenerate {
				return usageErrorf("message %s cannot be regenerated", msg.ID)
			}
			app.Store.RegenerateMessage(cmd.Context(), msg.ID)
			return printReply(cmd.OutOrStdout(), app.Store, conv.ID, msg.ID)
		},
	}
	cmd.Flags().StringVarP(&convRef, "conversation", "c", "", "Conversation holding the message")
	return cmd
}

func newRmMessageCommand(app *App) *cobra.Command {
	var convRef string
	cmd := &cobra.Command{
		Use:   "rm-message <message-id>",
		Short: "Delete a single message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := selectForMessage(app.Store, convRef, args[0])
			if err != nil {
				return err
			}
			if conv.MessageIndex(args[0]) < 0 {
				return messageNotFound(args[0])
			}
			if conv.MessageCount() <= 1 {
				return usageErrorf("cannot delete the only message of a conversation")
			}
			app.Store.DeleteMessage(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), RenderConditional(SuccessStyle, "Deleted "+args[0]))
			return nil
		},
	}
	cmd.Flags().StringVarP(&convRef, "conversation", "c", "", "Conversation holding the message")
	return cmd
}

// =============================================================================
// SEARCH, EXPORT, IMPORT
// =============================================================================

func newSearchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Find conversations by title or message content",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderList(cmd.OutOrStdout(), app.Store.Search(strings.Join(args, " ")), "")
			return nil
		},
	}
}

func newExportCommand(app *App) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export [conversation]",
		Short: "Export a conversation as json, md or txt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			conv, err := resolveConversation(app.Store, firstArg(args))
			if err != nil {
				return err
			}
			art, ok := app.Store.Export(conv.ID, f)
			if !ok {
				return errors.Errorf("export %s: failed", conv.ID)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(art.Content)
				return err
			}
			path, err := export.WriteArtifact(out, art)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatMarkdown), "Export format (json, md, txt)")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "Output directory, or - for stdout")
	return cmd
}

func newImportCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a conversation from a JSON export (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			id, err := app.Store.ImportConversation(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

type settingsFlags struct {
	model          string
	temperature    float64
	maxTokens      int
	systemPrompt   string
	showTimestamps bool
	autoSave       bool
}

func newSettingsCommand(app *App) *cobra.Command {
	f := &settingsFlags{}
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change chat settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch := f.patch(cmd)
			if !patch.IsEmpty() {
				app.Store.UpdateSettings(patch)
			}
			renderSettings(cmd.OutOrStdout(), app.Store.Settings())
			return nil
		},
	}
	cmd.Flags().StringVar(&f.model, "model", "", "Model name")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Maximum reply tokens")
	cmd.Flags().StringVar(&f.systemPrompt, "system-prompt", "", "System prompt")
	cmd.Flags().BoolVar(&f.showTimestamps, "show-timestamps", true, "Show message timestamps")
	cmd.Flags().BoolVar(&f.autoSave, "auto-save", true, "Auto-save flag")
	return cmd
}

// patch includes only the flags set on the command line.
func (f *settingsFlags) patch(cmd *cobra.Command) model.SettingsPatch {
	var p model.SettingsPatch
	flags := cmd.Flags()
	if flags.Changed("model") {
		p.Model = model.Ptr(f.model)
	}
	if flags.Changed("temperature") {
		p.Temperature = model.Ptr(f.temperature)
	}
	if flags.Changed("max-tokens") {
		p.MaxTokens = model.Ptr(f.maxTokens)
	}
	if flags.Changed("system-prompt") {
		p.SystemPrompt = model.Ptr(f.systemPrompt)
	}
	if flags.Changed("show-timestamps") {
		p.ShowTimestamps = model.Ptr(f.showTimestamps)
	}
	if flags.Changed("auto-save") {
		p.AutoSave = model.Ptr(f.autoSave)
	}
	return p
}

func renderSettings(w io.Writer, s model.Settings) {
	fmt.Fprintln(w, RenderLabel("Model")+s.Model)
	fmt.Fprintln(w, RenderLabel("Temperature")+strconv.FormatFloat(s.Temperature, 'g', -1, 64))
	fmt.Fprintln(w, RenderLabel("Max tokens")+strconv.Itoa(s.MaxTokens))
	fmt.Fprintln(w, RenderLabel("System prompt")+s.SystemPrompt)
	fmt.Fprintln(w, RenderLabel("Timestamps")+strconv.FormatBool(s.ShowTimestamps))
	fmt.Fprintln(w, RenderLabel("Auto-save")+strconv.FormatBool(s.AutoSave))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
