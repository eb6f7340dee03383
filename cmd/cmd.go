// Package cmd implements the ns9 command line: a root command plus
// helpers the subcommand packages share. Subcommands register
// themselves onto Root from their init functions.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ns9/ns9/ns"
)

// Root is the main ns9 command.
var Root = &cobra.Command{
	Use:   "ns9",
	Short: "Explore a Plan 9 style per-process namespace",
	Long: `
ns9 assembles a per-process namespace from the registered devices and
resolves names through it. Mounts and binds are set up with repeated
--bind flags and live only for the invocation.`,
}

var (
	bindFlags []string
	noAttach  bool
	verbose   bool
)

func init() {
	AddFlags(Root.PersistentFlags())
}

// AddFlags adds the namespace setup flags to f.
func AddFlags(f *pflag.FlagSet) {
	f.StringArrayVarP(&bindFlags, "bind", "b", nil, "Bind new onto old before running: new:old[:flags], flags from 'abc' (after, before, create)")
	f.BoolVar(&noAttach, "noattach", false, "Sandbox the namespace: only whitelisted devices may attach")
	f.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// NewProc assembles the process context a command runs with, applying
// the --bind flags in order.
func NewProc() (*ns.Proc, error) {
	if verbose {
		ns.SetLogHandler(ns.NewOutputHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	pg := ns.NewNamespace()
	pg.SetNoAttach(noAttach)
	pr, err := ns.NewProc(pg)
	if err != nil {
		pg.Close()
		return nil, err
	}
	for _, b := range bindFlags {
		if err := applyBind(pr, b); err != nil {
			pr.Close()
			return nil, fmt.Errorf("bind %q: %w", b, err)
		}
	}
	return pr, nil
}

// applyBind parses one --bind value and applies it to pr.
func applyBind(pr *ns.Proc, arg string) error {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("want new:old[:flags], got %q", arg)
	}
	flag := ns.MREPL
	if len(parts) == 3 {
		for _, ch := range parts[2] {
			switch ch {
			case 'a':
				flag |= ns.MAFTER
			case 'b':
				flag |= ns.MBEFORE
			case 'c':
				flag |= ns.MCREATE
			default:
				return fmt.Errorf("unknown bind flag %q", ch)
			}
		}
	}
	nc, err := pr.NameToChan(parts[0], ns.Abind, 0, 0)
	if err != nil {
		return err
	}
	oc, err := pr.NameToChan(parts[1], ns.Amount, 0, 0)
	if err != nil {
		nc.Close()
		return err
	}
	_, err = pr.Namespace().Mount(nc, oc, flag, "")
	oc.Close()
	nc.Close()
	return err
}

// CheckArgs checks there are enough command line arguments and prints
// a fatal error if not.
func CheckArgs(minArgs, maxArgs int, cmd *cobra.Command, args []string) {
	if len(args) < minArgs {
		_ = cmd.Usage()
		fmt.Fprintf(os.Stderr, "Command %s needs %d arguments minimum: you provided %d non flag arguments: %q\n", cmd.Name(), minArgs, len(args), args)
		os.Exit(1)
	}
	if len(args) > maxArgs {
		_ = cmd.Usage()
		fmt.Fprintf(os.Stderr, "Command %s needs %d arguments maximum: you provided %d non flag arguments: %q\n", cmd.Name(), maxArgs, len(args), args)
		os.Exit(1)
	}
}

// Run builds the process context, runs f, and exits on error.
func Run(cmd *cobra.Command, f func(pr *ns.Proc) error) {
	pr, err := NewProc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns9: %v\n", err)
		os.Exit(1)
	}
	err = f(pr)
	pr.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns9: %v\n", err)
		os.Exit(1)
	}
}

// Main runs the root command.
func Main() {
	if err := Root.Execute(); err != nil {
		os.Exit(2)
	}
}
