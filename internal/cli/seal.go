package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/permit-scraper/internal/config"
	"github.com/pfrederiksen/permit-scraper/internal/secret"
)

func newSealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Seal a credential for use in a config file",
		Long: `Read a value from stdin and print it sealed with the passphrase in
` + config.EnvSecretKey + `. Paste the output into the config file in place
of the plain value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd.ErrOrStderr()); err != nil {
				return err
			}
			box, err := secret.New(os.Getenv(config.EnvSecretKey))
			if err != nil {
				return fmt.Errorf("%s: %w", config.EnvSecretKey, err)
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value := strings.TrimRight(line, "\r\n")
			if value == "" {
				if err != nil {
					return fmt.Errorf("reading value: %w", err)
				}
				return fmt.Errorf("reading value: empty input")
			}

			sealed, err := box.Seal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
