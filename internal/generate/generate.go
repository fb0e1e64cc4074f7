// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"strings"

	"github.com/jeranaias/chatstore/internal/model"
)

// Request describes one reply to produce.
type Request struct {
	// Prompt is the user message being answered.
	Prompt string
	// History is the conversation up to, not including, the placeholder.
	History []model.Message
	// Settings are the chat settings at the time of the request.
	Settings model.Settings
	// Regenerate is set when an existing reply is being replaced.
	Regenerate bool
}

// Response is a finished reply.
type Response struct {
	Content string
	Type    model.MessageType
}

// Generator produces assistant replies.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// =============================================================================
// STUB GENERATOR
// =============================================================================

// Stub answers with canned content keyed on prompt keywords.
type Stub struct{}

// NewStub returns the canned generator.
func NewStub() Stub { return Stub{} }

var keywordTypes = []struct {
	words []string
	typ   model.MessageType
}{
	{[]string{"chart", "graph", "price history", "plot"}, model.TypeChart},
	{[]string{"contract", "solidity", "code", "function"}, model.TypeCode},
	{[]string{"analy", "portfolio", "risk", "allocation"}, model.TypeAnalysis},
}

// Classify picks the reply type for a prompt.
func Classify(prompt string) model.MessageType {
	p := strings.ToLower(prompt)
	for _, kt := range keywordTypes {
		for _, w := range kt.words {
			if strings.Contains(p, w) {
				return kt.typ
			}
		}
	}
	return model.TypeText
}

var cannedReplies = map[model.MessageType]string{
	model.TypeText: "Thanks for the question. Based on current market conditions, " +
		"I'd keep an eye on liquidity and recent on-chain activity before making a move.",
	model.TypeAnalysis: "## Portfolio Analysis\n\n" +
		"- **Diversification**: moderate, with most weight in large caps\n" +
		"- **Volatility**: above average over the last 30 days\n" +
		"- **Suggestion**: consider rebalancing toward stable assets",
	model.TypeChart: "Here is the price trend for the requested period. " +
		"The chart shows a steady climb with a pullback in the final week.",
	model.TypeCode: "```solidity\nfunction transfer(address to, uint256 amount) external returns (bool) {\n" +
		"    require(balanceOf[msg.sender] >= amount, \"insufficient balance\");\n" +
		"    balanceOf[msg.sender] -= amount;\n    balanceOf[to] += amount;\n    return true;\n}\n```",
}

// Generate returns the canned reply for the classified prompt.
func (Stub) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	typ := Classify(req.Prompt)
	content := cannedReplies[typ]
	if req.Regenerate {
		content = "Here's another take.\n\n" + content
	}
	return Response{Content: content, Type: typ}, nil
}
