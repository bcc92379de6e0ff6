// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package config collects the environment-variable knobs that sit
// alongside the jitc CLI's own flags, the way a deployed service tunes
// itself without a recompile.
package config

import "github.com/caarlos0/env/v6"

// Debug holds the JITLANG_DEBUG_* switches described in spec.md's external
// interfaces: dumping intermediate representations and a hex dump of the
// emitted machine code without
// threading a --dump-all flag through every subcommand.
type Debug struct {
	DumpAST    bool `env:"JITLANG_DEBUG_AST" envDefault:"false"`
	DumpHLIR   bool `env:"JITLANG_DEBUG_HLIR" envDefault:"false"`
	DumpLLIR   bool `env:"JITLANG_DEBUG_LLIR" envDefault:"false"`
	DumpAsm    bool `env:"JITLANG_DEBUG_ASM" envDefault:"false"`
	NoColor    bool `env:"JITLANG_NO_COLOR" envDefault:"false"`
}

// Load reads Debug from the process environment.
func Load() (Debug, error) {
	var d Debug
	if err := env.Parse(&d); err != nil {
		return Debug{}, err
	}
	return d, nil
}
