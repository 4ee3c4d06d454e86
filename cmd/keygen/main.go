// Command keygen generates an ed25519 account keypair. The account id
// is the base58 public key and doubles as the operation caller; the
// private key signs operation envelopes and never leaves the client.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mr-tron/base58"

	"token-ledger/internal/identity"
)

func main() {
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	id, priv, err := identity.NewAccount()
	if err != nil {
		log.New(os.Stderr, "[keygen] ", log.LstdFlags).Fatalf("generate account: %v", err)
	}

	// The base58 secret is the full 64-byte ed25519 private key, seed
	// plus public half.
	secret := base58.Encode(priv)

	if *outputJSON {
		output, _ := json.MarshalIndent(map[string]string{
			"account_id":  string(id),
			"private_key": secret,
		}, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("Account ID:  %s\n", id)
	fmt.Printf("Private Key: %s\n", secret)
}
