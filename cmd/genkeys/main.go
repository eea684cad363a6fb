// Generates an Ed25519 signing pair and writes both halves as PEM files.
// Point the service at them with --private-key and --public-key.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/avoytenko/gatekeeper/internal/token"
)

func main() {
	var privatePath, publicPath string

	fs := pflag.NewFlagSet("genkeys", pflag.ContinueOnError)
	fs.StringVar(&privatePath, "private", "gatekeeper.key", "File to write the private key PEM to")
	fs.StringVar(&publicPath, "public", "gatekeeper.pub", "File to write the public key PEM to")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	privatePEM, publicPEM, err := token.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating key pair: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error while writing private key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error while writing public key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\n", privatePath, publicPath)
}
