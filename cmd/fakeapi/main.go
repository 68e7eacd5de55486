package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bookstore-session/catalog"
	"github.com/jrsteele09/bookstore-session/internal/config"
	"github.com/jrsteele09/bookstore-session/internal/fakeapi"
	"github.com/jrsteele09/bookstore-session/users"
)

const (
	addrVar        = "FAKEAPI_ADDR"
	accessTTLVar   = "FAKEAPI_ACCESS_TTL"
	refreshTTLVar  = "FAKEAPI_REFRESH_TTL"
	secretVar      = "FAKEAPI_SECRET"
	envVar         = "FAKEAPI_ENV"
	seedPassword   = "password"
	defaultAddress = ":8080"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	api, err := newAPI()
	if err != nil {
		return err
	}
	displayAppname("bookstore fake api")

	server := &http.Server{Addr: config.GetEnv(addrVar, defaultAddress), Handler: api}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func newAPI() (*fakeapi.Server, error) {
	opts := []fakeapi.Option{fakeapi.WithEnv(config.GetEnv(envVar, "DEV"))}
	if d, err := envDuration(accessTTLVar); err != nil {
		return nil, err
	} else if d > 0 {
		opts = append(opts, fakeapi.WithAccessTTL(d))
	}
	if d, err := envDuration(refreshTTLVar); err != nil {
		return nil, err
	} else if d > 0 {
		opts = append(opts, fakeapi.WithRefreshTTL(d))
	}
	if secret := os.Getenv(secretVar); secret != "" {
		opts = append(opts, fakeapi.WithSecret(secret))
	}

	api := fakeapi.New(opts...)
	return api, seed(api)
}

// seed creates one account per role and a small catalog.
func seed(api *fakeapi.Server) error {
	if _, err := api.SeedUser("admin@bookstore.local", seedPassword, "Store Admin", users.RoleAdmin); err != nil {
		return err
	}
	if _, err := api.SeedUser("reader@bookstore.local", seedPassword, "Avid Reader", users.RoleCustomer); err != nil {
		return err
	}

	fiction := api.SeedCategory(catalog.Category{Name: "Fiction", Slug: "fiction"})
	science := api.SeedCategory(catalog.Category{Name: "Science", Slug: "science"})
	api.SeedBook(catalog.Book{
		ISBN: "9780441172719", Title: "Dune", Price: 9.99, StockQuantity: 12,
		Authors:    []catalog.Author{{ID: "frank-herbert", Name: "Frank Herbert"}},
		Categories: []catalog.Category{fiction},
	})
	api.SeedBook(catalog.Book{
		ISBN: "9780345539434", Title: "Cosmos", Price: 14.50, StockQuantity: 4,
		Authors:    []catalog.Author{{ID: "carl-sagan", Name: "Carl Sagan"}},
		Categories: []catalog.Category{science},
	})
	log.Info().Str("password", seedPassword).Msg("Seeded admin@bookstore.local and reader@bookstore.local")
	return nil
}

func envDuration(name string) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
