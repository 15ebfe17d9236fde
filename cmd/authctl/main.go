// authctl is the operator CLI for authsvc: it hashes passwords, manages key
// files and edits users and sessions directly in the configured store.
//
// Store commands read the same environment (and AUTH_CONFIG_FILE) as the
// server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, out io.Writer) error
}

func commands() []command {
	return []command{
		{"hash-password", "print the argon2id hash of a password", runHashPassword},
		{"create-user", "create a user in the configured store", runCreateUser},
		{"gen-key", "generate a PEM signing key (RS256, ES256, EdDSA)", runGenKey},
		{"seal-key", "encrypt a PEM signing key with a passphrase", runSealKey},
		{"revoke-user", "revoke every active refresh token of a user", runRevokeUser},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		if len(args) == 0 {
			return errors.New("no command given")
		}
		return nil
	}

	for _, cmd := range commands() {
		if cmd.name == args[0] {
			return cmd.run(ctx, args[1:], out)
		}
	}

	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: authctl <command> [flags]")
	fmt.Fprintln(out)
	for _, cmd := range commands() {
		fmt.Fprintf(out, "  %-14s %s\n", cmd.name, cmd.summary)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting and
// prints usage to out.
func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
