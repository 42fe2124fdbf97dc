// Command feedtail connects to a trade feed server, negotiating the event
// protocol with a raw websocket fallback, and renders the live filtered
// trade table in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aayush-kapoor/trading-feed-N1/feed"
	"github.com/aayush-kapoor/trading-feed-N1/session"
	"github.com/aayush-kapoor/trading-feed-N1/stream"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", envOr("FEED_URL", "http://localhost:4000"), "feed server URL")
	symbol := flag.String("symbol", "", "filter: symbol substring")
	exchange := flag.String("exchange", "", "filter: exchange substring")
	side := flag.String("side", "", "filter: buy or sell")
	minPrice := flag.String("min-price", "", "filter: minimum price, inclusive")
	maxPrice := flag.String("max-price", "", "filter: maximum price, inclusive")
	minSize := flag.String("min-size", "", "filter: minimum size, inclusive")
	maxSize := flag.String("max-size", "", "filter: maximum size, inclusive")
	rows := flag.Int("rows", 15, "table rows to render")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	filter, err := buildFilter(*symbol, *exchange, *side, *minPrice, *maxPrice, *minSize, *maxSize)
	if err != nil {
		log.WithError(err).Fatal("invalid filter")
	}

	sess := session.New(stream.WithLogger(logrusAdapter{log}))
	sess.SetFilters(filter)

	if err := sess.Connect(context.Background(), *url); err != nil {
		log.WithError(err).Fatal("connect failed")
	}
	log.WithField("transport", sess.Transport().String()).Info("connected")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			sess.Disconnect()
			return
		case <-sess.Done():
			log.Info("feed connection closed")
			return
		case <-ticker.C:
			render(os.Stdout, sess, *rows)
		}
	}
}

func render(w io.Writer, sess *session.Session, rows int) {
	trades := sess.Trades()

	fmt.Fprint(w, "\033[2J\033[H")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSYMBOL\tSIDE\tPRICE\tSIZE\tEXCHANGE")
	for i, t := range trades {
		if i >= rows {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%s\n",
			t.Time().Format("15:04:05"), t.Symbol, t.Side, t.Price, t.Size, t.Exchange)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d trades, state %s\n", len(trades), sess.ConnectionState())
}

func buildFilter(symbol, exchange, side, minPrice, maxPrice, minSize, maxSize string) (feed.Filter, error) {
	f := feed.Filter{
		Symbol:   symbol,
		Exchange: exchange,
	}

	var err error
	if f.MinPrice, err = optFloat(minPrice); err != nil {
		return feed.Filter{}, fmt.Errorf("min-price: %w", err)
	}
	if f.MaxPrice, err = optFloat(maxPrice); err != nil {
		return feed.Filter{}, fmt.Errorf("max-price: %w", err)
	}
	if f.MinSize, err = optFloat(minSize); err != nil {
		return feed.Filter{}, fmt.Errorf("min-size: %w", err)
	}
	if f.MaxSize, err = optFloat(maxSize); err != nil {
		return feed.Filter{}, fmt.Errorf("max-size: %w", err)
	}

	switch feed.Side(side) {
	case "":
	case feed.Buy, feed.Sell:
		f.Sides = []feed.Side{feed.Side(side)}
	default:
		return feed.Filter{}, fmt.Errorf("side must be buy or sell, got %q", side)
	}

	return f, nil
}

func optFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logrusAdapter exposes a logrus logger through the stream Logger interface.
type logrusAdapter struct {
	log logrus.FieldLogger
}

func (l logrusAdapter) Infof(format string, v ...interface{})  { l.log.Infof(format, v...) }
func (l logrusAdapter) Warnf(format string, v ...interface{})  { l.log.Warnf(format, v...) }
func (l logrusAdapter) Errorf(format string, v ...interface{}) { l.log.Errorf(format, v...) }
