// Package resolve resolves a name and reports where it landed.
package resolve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ns9/ns9/cmd"
	"github.com/ns9/ns9/ns"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "resolve path",
	Short: "Resolve a name and report where it landed",
	Long: `
Resolve a name through the namespace and print the path actually
traversed, the device serving the result, its qid, and whether the
channel sits on a mount point. Use with --bind to watch unions and
".." uncrossing behave.`,
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(1, 1, command, args)
		cmd.Run(command, func(pr *ns.Proc) error {
			c, err := pr.NameToChan(args[0], ns.Aaccess, 0, 0)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Printf("path   %s\n", c.Path())
			fmt.Printf("device %s#%d\n", c.Dev.Name(), c.DevNo)
			fmt.Printf("qid    (%x %d %x)\n", c.Qid.Path, c.Qid.Vers, c.Qid.Type)
			fmt.Printf("mtpt   %v\n", c.IsMountPoint())
			fmt.Printf("last   %s\n", pr.LastElem())
			return nil
		})
	},
}
