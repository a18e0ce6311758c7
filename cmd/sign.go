package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hookdeploy/config"
	"hookdeploy/signature"
)

var signAlgo string

var signCmd = &cobra.Command{
	Use:   "sign <file>",
	Short: "Print the signature header for a payload file (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := config.GetString("GITHUB_WEBHOOK_SECRET", "")
		if secret == "" {
			return errors.New("GITHUB_WEBHOOK_SECRET is not set")
		}
		var (
			body []byte
			err  error
		)
		if args[0] == "-" {
			body, err = io.ReadAll(cmd.InOrStdin())
		} else {
			body, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}

		header, err := signHeader(signature.Algorithm(signAlgo))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", header, signature.Sign(secret, body, signature.Algorithm(signAlgo)))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signAlgo, "algo", string(signature.SHA256), "digest to use: sha1 or sha256")
	rootCmd.AddCommand(signCmd)
}

func signHeader(algo signature.Algorithm) (string, error) {
	switch algo {
	case signature.SHA1:
		return signature.HeaderSHA1, nil
	case signature.SHA256:
		return signature.HeaderSHA256, nil
	default:
		return "", fmt.Errorf("unsupported algorithm %q", algo)
	}
}
