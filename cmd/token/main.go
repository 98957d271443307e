// Command token issues a PASETO access token for clinic staff.
package main

import (
	"DentalClinic/config"
	"DentalClinic/database"
	"DentalClinic/utils"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	userID := flag.String("user", "", "user id")
	role := flag.String("role", utils.RoleReceptionist, "role: Admin, Medic, Receptionist or Patient")
	tenant := flag.String("tenant", "", "clinic subdomain")
	flag.Parse()

	log := zerolog.New(os.Stderr)
	if *userID == "" || !database.ValidTenant(*tenant) {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	tokens, err := utils.NewTokenIssuer(cfg.SymmetricKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token issuer")
	}
	token, err := tokens.GenerateAccessToken(*userID, *role, *tenant)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate token")
	}
	fmt.Println(token)
}
