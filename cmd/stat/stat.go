// Package stat prints the directory entry of a name.
package stat

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
	Use:   "stat path",
	Short: "Print the directory entry of a name",
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(1, 1, command, args)
		cmd.Run(command, func(pr *ns.Proc) error {
			c, err := pr.NameToChan(args[0], ns.Aaccess, 0, 0)
			if err != nil {
				return err
			}
			defer c.Close()
			d, err := ns.ChanStat(c)
			if err != nil {
				return err
			}
			fmt.Printf("name %q mode %o length %d qid (%x %d %x)\n",
				d.Name, d.Mode, d.Length, d.Qid.Path, d.Qid.Vers, d.Qid.Type)
			return nil
		})
	},
}
