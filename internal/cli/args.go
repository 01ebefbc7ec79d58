// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "strings"

// =============================================================================
// ARGUMENT PARSER
// =============================================================================

// ArgParser gives every command the same flag handling:
//
//	--flag value     long flag with a value
//	--flag=value     long flag with inline value
//	--flag           boolean flag
//	-f value         short flag with a value
//
// The first positional argument doubles as the subcommand.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// boolOnly lists flags that never take a value, so "--json list" keeps
// "list" positional instead of eating it as the flag value.
var boolOnly = map[string]bool{
	"json": true, "plain": true, "force": true, "verbose": true,
}

// NewArgParser parses raw command arguments.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			p.flags[name[:eq]] = name[eq+1:]
			continue
		}
		if !boolOnly[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.boolFlags[name] = true
	}
	return p
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	if len(p.positional) == 0 {
		return ""
	}
	return p.positional[0]
}

// Positional returns all positional arguments.
func (p *ArgParser) Positional() []string {
	return p.positional
}

// Rest returns the positional arguments after the subcommand.
func (p *ArgParser) Rest() []string {
	if len(p.positional) <= 1 {
		return nil
	}
	return p.positional[1:]
}

// Flag returns a string flag value, checking each name in order. Short
// aliases are just additional names: Flag("model", "m").
func (p *ArgParser) Flag(names ...string) string {
	for _, name := range names {
		if v, ok := p.flags[name]; ok {
			return v
		}
	}
	return ""
}

// Bool reports whether any of the names was set as a boolean flag.
func (p *ArgParser) Bool(names ...string) bool {
	for _, name := range names {
		if p.boolFlags[name] {
			return true
		}
	}
	return false
}
