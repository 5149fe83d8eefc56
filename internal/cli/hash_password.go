package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/kompanion/internal/auth"
)

// HashPasswordCommand prints a bcrypt hash suitable for KOMPANION_AUTH_PASSWORD.
type HashPasswordCommand struct {
	Cost int

	in  io.Reader
	out io.Writer
}

func NewHashPasswordCommand() *HashPasswordCommand {
	return &HashPasswordCommand{in: os.Stdin, out: os.Stdout}
}

func (cmd *HashPasswordCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)

	fs.IntVar(&cmd.Cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s hash-password [options] < password.txt\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Read a password from stdin and print its bcrypt hash.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Cost < bcrypt.MinCost || cmd.Cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (cmd *HashPasswordCommand) Run() error {
	line, err := bufio.NewReader(cmd.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read password: %w", err)
	}

	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"), cmd.Cost)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.out, hash)
	return nil
}
