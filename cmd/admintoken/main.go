// Command admintoken prints a bearer token for the reservation listing
// endpoint, signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Int("ttl", cfg.AdminTokenTTL, "lifetime in minutes")
	flag.Parse()

	tok, err := utils.NewAdminToken(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	log.Printf("expires %s", tok.Exp.Format("2006-01-02T15:04:05Z07:00"))
}
