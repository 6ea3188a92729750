// cmd/gentoken prints a signed operator token for local testing.
// Uso: go run ./cmd/gentoken -sub ana -rol cajero -store sucursal-1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/config"
	"github.com/dyaogo/pos-superette-sub002/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	sub := flag.String("sub", "", "operator id (token subject)")
	rol := flag.String("rol", middleware.RolCajero, "cajero | supervisor | administrador")
	store := flag.String("store", "", "default store_id for inventory requests")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		log.Fatal().Msg("-sub is required")
	}
	switch *rol {
	case middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador:
	default:
		log.Fatal().Str("rol", *rol).Msg("unknown role")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	now := time.Now()
	token, err := middleware.SignToken(cfg.JWTSecret, middleware.JWTClaims{
		Rol:     *rol,
		StoreID: *store,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(token)
}
