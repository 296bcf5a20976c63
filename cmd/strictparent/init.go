package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"strictparent/internal/project"
)

const exampleManifestName = "example.classes.toml"

const exampleManifest = `# Classes are derived in file order; bases must be declared first.

[[class]]
name = "Animal"

  [[class.member]]
  name = "speak"
  kind = "method"
  markers = ["final"]

  [[class.member]]
  name = "name"
  kind = "property"

[[class]]
name = "Dog"
bases = ["Animal"]

  [[class.member]]
  name = "speak"
  kind = "method"
  markers = ["force_override"]

  [[class.member]]
  name = "name"
  kind = "property"
  markers = ["overrides"]

  [[class.member]]
  name = "fetch"
  kind = "method"
`

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create strictparent.toml and an example manifest",
		Long: `Initialize a project by writing strictparent.toml and example.classes.toml.
If [dir] is omitted, the current directory is used; missing directories are created.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			abs, err := filepath.Abs(target)
			if err != nil {
				return err
			}
			if st, statErr := os.Stat(abs); statErr == nil && !st.IsDir() {
				return fmt.Errorf("%q is not a directory", abs)
			}

			cfgPath, err := project.WriteTemplate(abs, force)
			if err != nil {
				return fmt.Errorf("project already initialized or not writable: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s\n", cfgPath)

			manifestPath := filepath.Join(abs, exampleManifestName)
			_, statErr := os.Stat(manifestPath)
			switch {
			case statErr == nil && !force:
				fmt.Fprintf(out, "kept existing %s\n", manifestPath)
			case statErr == nil || errors.Is(statErr, os.ErrNotExist):
				if err := os.WriteFile(manifestPath, []byte(exampleManifest), 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", manifestPath, err)
				}
				fmt.Fprintf(out, "created %s\n", manifestPath)
			default:
				return statErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
