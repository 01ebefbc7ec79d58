// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgParserFlagFormats(t *testing.T) {
	p := NewArgParser([]string{"search", "--model", "gpt-4o", "--config=/tmp/c.toml", "--json", "rate", "limiter"})

	assert.Equal(t, "search", p.Subcommand())
	assert.Equal(t, "gpt-4o", p.Flag("model", "m"))
	assert.Equal(t, "/tmp/c.toml", p.Flag("config", "c"))
	assert.True(t, p.Bool("json"))
	assert.Equal(t, []string{"rate", "limiter"}, p.Rest())
}

func TestArgParserShortAlias(t *testing.T) {
	p := NewArgParser([]string{"-m", "claude", "hello"})
	assert.Equal(t, "claude", p.Flag("model", "m"))
	assert.Equal(t, []string{"hello"}, p.Positional())
}

func TestArgParserBoolDoesNotEatPositional(t *testing.T) {
	p := NewArgParser([]string{"--json", "list"})
	assert.True(t, p.Bool("json"))
	assert.Equal(t, "list", p.Subcommand())
}

func TestArgParserEmpty(t *testing.T) {
	p := NewArgParser(nil)
	assert.Equal(t, "", p.Subcommand())
	assert.Nil(t, p.Rest())
	assert.Equal(t, "", p.Flag("model"))
	assert.False(t, p.Bool("json"))
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Equal(t, 2, Run([]string{"frobnicate"}))
}

func TestRunVersion(t *testing.T) {
	assert.Equal(t, 0, Run([]string{"version"}))
}
