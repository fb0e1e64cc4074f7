// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"time"

	"github.com/jeranaias/chatstore/internal/export"
	"github.com/jeranaias/chatstore/internal/model"
)

// ExampleBuild demonstrates exporting a conversation to Markdown format.
func ExampleBuild() {
	conv := model.NewConversation("ETH Gas Fees", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	art, err := export.Build(conv, export.FormatMarkdown)
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}

	fmt.Println(art.Filename)
	fmt.Println(art.MimeType)
	// Output:
	// eth_gas_fees.md
	// text/markdown
}
