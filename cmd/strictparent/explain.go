package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strictparent/internal/diag"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe diagnostic codes",
		Long:  `Without arguments, list every diagnostic code. With a code such as HIE3002, print the rule behind it.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, c := range diag.Codes() {
					fmt.Fprintf(out, "%-8s %s\n", c.ID(), c.Title())
				}
				return nil
			}
			code, ok := diag.ParseCode(strings.ToUpper(strings.TrimSpace(args[0])))
			if !ok {
				return fmt.Errorf("unknown diagnostic code %q (run `strictparent explain` for the list)", args[0])
			}
			fmt.Fprintf(out, "%s: %s\n", code.ID(), code.Title())
			if text := code.Explain(); text != "" {
				fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(text))
			}
			return nil
		},
	}
}
