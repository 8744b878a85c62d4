// Command activity-replay publishes spooled analytics events to Kafka.
//
// The storefront spools activity events to disk when the broker is
// unreachable and replays them on its next start. This tool drains a spool
// directory out of band, for spools left behind by a decommissioned instance
// or when the replay should happen without restarting the server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"

	"github.com/bookverse/storefront/internal/analytics"
)

func main() {
	var (
		spoolDir string
		brokers  string
		topic    string
	)

	flag.StringVar(&spoolDir, "spool-dir", "data/spool", "directory containing spooled event segments")
	flag.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (or STORE_ANALYTICS_BROKERS env)")
	flag.StringVar(&topic, "topic", "storefront.activity", "Kafka topic for activity events")
	flag.Parse()

	if brokers == "" {
		brokers = os.Getenv("STORE_ANALYTICS_BROKERS")
	}
	if brokers == "" {
		slog.Error("brokers are required: set --brokers or STORE_ANALYTICS_BROKERS")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, spoolDir, strings.Split(brokers, ","), topic); err != nil {
		slog.Error("activity replay failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("activity replay completed successfully")
}

func run(ctx context.Context, spoolDir string, brokers []string, topic string) error {
	spool, err := analytics.NewSpool(spoolDir)
	if err != nil {
		return errors.Wrap(err, "open spool")
	}
	defer func() { _ = spool.Close() }()

	sink, err := analytics.NewKafkaSink(brokers, topic, nil)
	if err != nil {
		return errors.Wrap(err, "create kafka sink")
	}
	defer func() { _ = sink.Close() }()

	var published, failed, lost int
	n, err := spool.Replay(ctx, func(ev analytics.Event) {
		if perr := sink.Publish(ctx, ev); perr != nil {
			failed++
			slog.Warn("publish failed",
				slog.String("type", ev.Type),
				slog.String("error", perr.Error()),
			)
			// Replay deletes the segment the event came from, so the
			// failed event must go back into a fresh segment for the
			// next run to retry.
			if aerr := spool.Append(ev); aerr != nil {
				lost++
				slog.Error("respool failed, event lost",
					slog.String("type", ev.Type),
					slog.String("error", aerr.Error()),
				)
			}
			return
		}
		published++
	})
	if err != nil {
		return errors.Wrap(err, "replay spool")
	}

	slog.Info("replay finished",
		slog.Int("read", n),
		slog.Int("published", published),
		slog.Int("failed", failed),
	)
	if lost > 0 {
		return errors.Errorf("%d events lost: publish and respool both failed", lost)
	}
	if failed > 0 {
		return errors.Errorf("%d events failed to publish and were respooled", failed)
	}
	return nil
}
