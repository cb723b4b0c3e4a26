// cmd/seed/main.go: loads a demo sucursal with menu, tables and opening stock,
// then prints one JWT per role for local testing.
// Uso: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"mesapos/internal/config"
	"mesapos/internal/infra"
	"mesapos/internal/middleware"
	"mesapos/internal/model"
	"mesapos/internal/router"
	"mesapos/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type productoDemo struct {
	nombre string
	precio int64
	stock  int
}

var menu = []productoDemo{
	{"Milanesa napolitana", 9500, 40},
	{"Empanada de carne", 1200, 120},
	{"Ensalada mixta", 4800, 25},
	{"Flan casero", 3200, 30},
	{"Agua sin gas 500ml", 1500, 200},
	{"Vino Malbec copa", 4000, 60},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required to sign demo tokens")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	ctx := context.Background()

	sucursal := &model.Sucursal{RestauranteID: uuid.New(), Nombre: "Casa Central", Activo: true}
	if err := db.WithContext(ctx).Create(sucursal).Error; err != nil {
		log.Fatal().Err(err).Msg("create sucursal")
	}

	svcs := router.NewServices(cfg, db, nil)
	for _, item := range menu {
		p := &model.Producto{
			RestauranteID: sucursal.RestauranteID,
			Nombre:        item.nombre,
			Precio:        decimal.NewFromInt(item.precio),
			Activo:        true,
		}
		if err := db.WithContext(ctx).Create(p).Error; err != nil {
			log.Fatal().Err(err).Str("producto", item.nombre).Msg("create producto")
		}
		// opening stock goes through the ledger so it shows up as a compra
		if _, err := svcs.Stock.Mutar(ctx, service.MutacionStock{
			ProductoID: p.ID,
			SucursalID: sucursal.ID,
			Delta:      item.stock,
			Tipo:       model.MovimientoCompra,
			Motivo:     "stock inicial",
		}); err != nil {
			log.Fatal().Err(err).Str("producto", item.nombre).Msg("stock inicial")
		}
	}

	for numero := 1; numero <= 12; numero++ {
		capacidad := 4
		if numero > 10 {
			capacidad = 8
		}
		m := &model.Mesa{SucursalID: sucursal.ID, Numero: numero, Capacidad: capacidad, Activo: true}
		if err := db.WithContext(ctx).Create(m).Error; err != nil {
			log.Fatal().Err(err).Int("numero", numero).Msg("create mesa")
		}
	}

	fmt.Printf("Sucursal %q: %s\n", sucursal.Nombre, sucursal.ID)
	fmt.Printf("%d productos, 12 mesas\n\n", len(menu))
	for _, rol := range []model.Rol{model.RolMozo, model.RolCajero, model.RolCocina, model.RolAdministrador} {
		tok, err := firmar(cfg.JWTSecret, rol, sucursal.ID)
		if err != nil {
			log.Fatal().Err(err).Msg("sign token")
		}
		fmt.Printf("%-14s %s\n", rol, tok)
	}
}

func firmar(secret string, rol model.Rol, sucursalID uuid.UUID) (string, error) {
	claims := middleware.JWTClaims{
		UserID:     uuid.NewString(),
		Rol:        string(rol),
		SucursalID: sucursalID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "demo-" + string(rol),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
