// FILE: src/cmd/token-gen/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"logrelay/src/internal/auth"

	"golang.org/x/term"
)

func main() {
	var (
		identity = flag.String("i", "", "Identity the token belongs to")
		perms    = flag.String("p", "ingest", "Comma-separated permissions (ingest,subscribe,admin)")
		hashOnly = flag.Bool("hash", false, "Hash a caller-chosen token instead of generating one")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "LogRelay Token Utility\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  Generate random token: %s -i <identity> [-p <perms>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  Hash existing token:   %s -i <identity> -hash\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *identity == "" {
		fmt.Fprintf(os.Stderr, "Error: identity required\n")
		flag.Usage()
		os.Exit(1)
	}

	permissions := strings.Split(*perms, ",")
	for _, p := range permissions {
		switch auth.Permission(strings.TrimSpace(p)) {
		case auth.PermIngest, auth.PermSubscribe, auth.PermAdmin:
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown permission %q\n", p)
			os.Exit(1)
		}
	}

	var token, encodedHash string
	var err error

	if *hashOnly {
		token = promptToken("Enter token: ")
		confirm := promptToken("Confirm token: ")
		if token != confirm {
			fmt.Fprintf(os.Stderr, "Error: tokens don't match\n")
			os.Exit(1)
		}
		encodedHash, err = auth.HashToken(token)
	} else {
		token, encodedHash, err = auth.GenerateToken()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Output TOML config format
	fmt.Println("\n# Add to logrelay.toml under [auth]:")
	fmt.Printf("[[auth.tokens]]\n")
	fmt.Printf("identity = \"%s\"\n", *identity)
	fmt.Printf("hash = \"%s\"\n", encodedHash)
	fmt.Printf("permissions = [%s]\n", quoteList(permissions))

	if !*hashOnly {
		fmt.Printf("\n# Access token (store securely, it is not recoverable):\n")
		fmt.Printf("# %s\n", token)
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", strings.TrimSpace(item))
	}
	return strings.Join(quoted, ", ")
}

func promptToken(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	token, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading token: %v\n", err)
		os.Exit(1)
	}
	return string(token)
}
