package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YvesLemasson/curve-io-sub000/config"
	"github.com/YvesLemasson/curve-io-sub000/handlers"
	"github.com/YvesLemasson/curve-io-sub000/room"
	"github.com/YvesLemasson/curve-io-sub000/storage"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	journal, err := storage.NewJournal(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := room.NewManager(ctx, cfg.Rooms(journal))
	go manager.RunSweeper(ctx, cfg.SweepInterval)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handlers.NewServer(manager, journal, cfg.Codec, cfg.InputRate).Routes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("error shutting down server:", err)
		}
	}()

	log.Printf("Server started on :%s (%d Hz, %s codec, results in %s)", cfg.Port, cfg.TickRate, cfg.Codec.Name(), journal.Path())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	<-idle
}
