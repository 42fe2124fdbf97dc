// Command feedd runs the demo trade feed server. Every accepted websocket
// connection receives a welcome message and then a synthetic trade every one
// to three seconds until the connection closes.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aayush-kapoor/trading-feed-N1/producer"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("FEED_ADDR", ":4000"), "listen address")
	schema := flag.String("schema", envOr("FEED_SCHEMA", string(producer.SchemaNative)), "payload schema: native or token")
	rawOnly := flag.Bool("raw-only", false, "disable the event protocol endpoint")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	opts := []producer.Option{
		producer.WithLogger(log),
		producer.WithSchema(producer.Schema(*schema)),
	}
	if *rawOnly {
		opts = append(opts, producer.WithoutEventProtocol())
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: producer.NewServer(opts...),
	}

	go func() {
		log.WithField("addr", *addr).Info("feed server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("feed server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
