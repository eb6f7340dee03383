// Package ls lists a directory through the namespace.
package ls

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ns9/ns9/cmd"
	"github.com/ns9/ns9/ns"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
	cmdFlags := commandDefinition.Flags()
	cmdFlags.BoolP("long", "l", false, "Show mode, size and qid of each entry")
}

var commandDefinition = &cobra.Command{
	Use:   "ls path",
	Short: "List a directory through the namespace",
	Long: `
List the entries of the directory the name resolves to. A union
directory lists the merged entries of all its members, first member
winning on duplicate names.`,
	Run: func(command *cobra.Command, args []string) {
		cmd.CheckArgs(1, 1, command, args)
		long, _ := command.Flags().GetBool("long")
		cmd.Run(command, func(pr *ns.Proc) error {
			c, err := pr.NameToChan(args[0], ns.Aopen, ns.OREAD, 0)
			if err != nil {
				return err
			}
			defer c.Close()
			entries, err := ns.ReadDir(c)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if long {
					fmt.Printf("%11o %8d %16x %s\n", e.Mode, e.Length, e.Qid.Path, e.Name)
				} else {
					fmt.Println(e.Name)
				}
			}
			return nil
		})
	},
}
