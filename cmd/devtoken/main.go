// Command devtoken prints an access token for local testing and, on
// request, a fresh callback path token with the bcrypt hash to put in
// MPESA_CALLBACK_TOKEN_HASH.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/kututa/railway-booking/internal/middleware"
	"github.com/kututa/railway-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "subject (user id) of the token")
	role := flag.String("role", middleware.RoleUser, "role claim: user or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	callback := flag.Bool("callback", false, "also print a callback path token and its bcrypt hash")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	tok, err := utils.NewAccessToken(secret, *user, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Printf("ACCESS_TOKEN=%s\n# expires %s\n", tok.Token, tok.Exp.Format(time.RFC3339))

	if *callback {
		plain, err := utils.RandomHex(24)
		if err != nil {
			fmt.Fprintln(os.Stderr, "random token:", err)
			os.Exit(1)
		}
		hash, err := utils.HashSecret(plain, bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash token:", err)
			os.Exit(1)
		}
		fmt.Printf("# append to MPESA_CALLBACK_URL: /%s\nMPESA_CALLBACK_TOKEN_HASH=%s\n", plain, hash)
	}
}
