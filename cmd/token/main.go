// Package main выпускает сервисный JWT для клиентов HTTP API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/vpn-entitlements/internal/config"
	"github.com/magabrotheeeer/vpn-entitlements/internal/lib/jwt"
)

func main() {
	var caller, role string
	flag.StringVar(&caller, "caller", "telegram-bot", "name of the calling service")
	flag.StringVar(&role, "role", jwt.RoleService, "token role: service or admin")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(caller, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
