// Package all imports all the subcommands so a single import wires
// the whole command tree.
package all

import (
	// Active commands
	_ "github.com/ns9/ns9/cmd/ls"
	_ "github.com/ns9/ns9/cmd/resolve"
	_ "github.com/ns9/ns9/cmd/stat"
)
