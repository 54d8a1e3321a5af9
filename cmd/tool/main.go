package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/infrastructure/security"
)

// Load-test helper: mints N session tokens signed with the given secret so a
// driver can hit authenticated endpoints without running sign-in flows.
func main() {
	var (
		n      = flag.Int("n", 1000, "number of tokens")
		secret = flag.String("secret", os.Getenv("SESSION_SECRET"), "session secret")
		issuer = flag.String("issuer", "authgate", "token issuer")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
		out    = flag.String("out", "tokens.csv", "output file")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing secret: pass -secret or set SESSION_SECRET")
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	signer := security.NewSessionSigner(*secret, *issuer)

	fmt.Printf("Generating %d tokens...\n", *n)
	for i := 0; i < *n; i++ {
		uid := uuid.NewString()
		token, err := signer.Sign(authn.SessionClaims{
			UserID: uid,
			Email:  fmt.Sprintf("load-%d@example.com", i),
			Name:   fmt.Sprintf("load user %d", i),
		}, *ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		if _, err := fmt.Fprintf(f, "%s,%s\n", uid, token); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Wrote %s\n", *out)
}
