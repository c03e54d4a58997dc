//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Produces the bcrypt hash to put in ADMIN_PASSWORD_HASH.
// Usage: go run scripts/utilities/hash_password.go <password>
func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: hash_password <password>")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	fmt.Println(string(hash))
}
