package main

import (
	"log"
	"net/http"

	"github.com/siakad-ng/realtime/pkg/config"
)

func main() {
	cfg := config.Load()

	hub := NewHub(cfg.Relay.Key, cfg.Relay.Secret, cfg.Relay.RedisAddr)

	http.HandleFunc("/login", LoginHandler(cfg.Relay))
	http.Handle("/broadcasting/auth", AuthMiddleware([]byte(cfg.Relay.JWTSecret), ChannelAuthHandler(hub)))
	http.Handle("/events", AuthMiddleware([]byte(cfg.Relay.JWTSecret), EventsHandler(hub)))
	http.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	log.Printf("Relay starting on %s (app key %s)...", cfg.Relay.Addr, cfg.Relay.Key)
	if err := http.ListenAndServe(cfg.Relay.Addr, nil); err != nil {
		log.Fatal(err)
	}
}
