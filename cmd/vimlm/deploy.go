package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/vimlm/internal/deploy"
	"github.com/ChamsBouzaiene/vimlm/internal/mailbox"
)

var (
	deployDest     string
	deployReformat bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy [file|-]",
	Short: "Write the labeled code blocks of a reply to disk",
	Long: `Reads a reply (default: the current response.md, "-" for stdin) and writes
every block labeled **name** to --dest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := prepareRuntimeEnv(cmd.Context(), debugFlag)
		if err != nil {
			return err
		}
		defer env.Close()

		src := filepath.Join(env.manager.MailboxPath(), mailbox.ResponseFile)
		if len(args) == 1 {
			src = args[0]
		}
		text, err := readSource(cmd.InOrStdin(), src)
		if err != nil {
			return err
		}

		if deployReformat || env.cfg.DeployReformat {
			text, err = deploy.Reformat(cmd.Context(), env.model, text, env.cfg.TokenBudget)
			if err != nil {
				return err
			}
		}

		dest := deployDest
		if dest == "" {
			dest = workDir()
		}
		written, err := deploy.ExtractAndWrite(text, dest)
		for _, path := range written {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return err
	},
}

func readSource(stdin io.Reader, src string) (string, error) {
	var data []byte
	var err error
	if src == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	return string(data), nil
}

func init() {
	deployCmd.Flags().StringVar(&deployDest, "dest", "", "destination directory (default: current directory)")
	deployCmd.Flags().BoolVar(&deployReformat, "reformat", false, "ask the model to relabel the reply first")
}
