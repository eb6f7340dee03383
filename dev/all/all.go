// Package all imports all the devices so a single import registers
// the whole device table.
package all

import (
	// Active devices
	_ "github.com/ns9/ns9/dev/env"
	_ "github.com/ns9/ns9/dev/ram"
	_ "github.com/ns9/ns9/dev/root"
)
