// cmd/cipher.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aceteam-ai/seqcipher/internal/cipher"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <text...>",
	Short: "Encipher text with the configured passphrase",
	Long: `Enciphers the arguments (joined by spaces) with the same transform the
worker applies, and prints the result. Use "-" to read lines from stdin.`,
	Example: `  seqcipher encrypt "meet me at noon"
  echo "meet me at noon" | seqcipher encrypt -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCipher(cmd, args, (*cipher.Cipher).Encrypt)
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <ciphertext>",
	Short: "Reverse encrypt with the configured passphrase",
	Long:  `Deciphers a value printed by encrypt or shown in the feed. Use "-" to read lines from stdin.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCipher(cmd, args, (*cipher.Cipher).Decrypt)
	},
}

func runCipher(cmd *cobra.Command, args []string, op func(*cipher.Cipher, string) (string, error)) error {
	pass := passphrase
	if pass == "" {
		pass = cipher.DefaultPassphrase
	}
	c, err := cipher.New(pass)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 && args[0] == "-" {
		return cipherLines(c, op, cmd.InOrStdin(), out)
	}

	result, err := op(c, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result)
	return nil
}

// cipherLines applies op to every line of in. Blank lines are kept as-is.
func cipherLines(c *cipher.Cipher, op func(*cipher.Cipher, string) (string, error), in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Fprintln(out)
			continue
		}
		result, err := op(c, text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fmt.Fprintln(out, result)
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
}
