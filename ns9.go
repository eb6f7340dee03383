// ns9 resolves names through a Plan 9 style per-process namespace.
package main

import (
	"github.com/ns9/ns9/cmd"

	_ "github.com/ns9/ns9/cmd/all"
	_ "github.com/ns9/ns9/dev/all"
)

func main() {
	cmd.Main()
}
