// Command castlelink collects Castle Link Live telemetry, either directly from
// GPIO lines or from the firmware console on a serial port, and fans it out to
// MQTT, websocket clients and a SQLite recording.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/BryanSouza91/castlelink/internal/options"
	"github.com/BryanSouza91/castlelink/internal/publish"
	"github.com/BryanSouza91/castlelink/internal/source"
	"github.com/BryanSouza91/castlelink/internal/store"
	"github.com/BryanSouza91/castlelink/internal/web"
	"github.com/BryanSouza91/castlelink/sequencer"
)

const Version = "0.1.0"

func main() {
	app := filepath.Base(os.Args[0])
	opts, err := options.Parse(afero.NewOsFs(), os.Getenv(options.EnvVar), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app, err)
		fmt.Fprintf(os.Stderr, "Usage of %s [options]; see -help\n", app)
		os.Exit(2)
	}
	log.Printf("castlelink %s, source %s", Version, opts.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("castlelink: %v", err)
	}
}

// sinks are the consumers of the sample stream.
type sinks struct {
	mqtt *publish.Client
	hub  *web.Hub
	rec  *store.Recorder
}

func run(ctx context.Context, opts options.Options) error {
	var k sinks
	if opts.Broker != "" {
		c, err := publish.Dial(opts.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer c.Close()
		k.mqtt = c
	}
	if opts.Database != "" {
		rec, err := store.Open(opts.Database)
		if err != nil {
			return err
		}
		defer rec.Close()
		k.rec = rec
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Listen != "" {
		k.hub = web.NewHub(32)
		srv := &http.Server{Addr: opts.Listen, Handler: web.Handler(k.hub)}
		g.Go(func() error {
			k.hub.Run(ctx)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			log.Printf("web: listening on %s", opts.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	samples := make(chan source.Sample, 16)
	var scanStats source.Stats
	switch opts.Source {
	case options.SourceSerial:
		port, err := source.OpenSerial(opts.Device, opts.Baud)
		if err != nil {
			return fmt.Errorf("serial %s: %w", opts.Device, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return port.Close()
		})
		g.Go(func() error {
			defer close(samples)
			err := source.Scan(ctx, port, samples, &scanStats)
			if ctx.Err() != nil {
				// Closing the port ends the scan with a read error.
				return nil
			}
			return err
		})
	default:
		if err := startGPIO(ctx, g, opts, k.mqtt, samples); err != nil {
			return err
		}
	}

	var count, failed int64
	start := time.Now()
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case s, ok := <-samples:
				if !ok {
					return nil
				}
				count++
				if err := k.deliver(s, opts); err != nil {
					failed++
					log.Printf("deliver: %v", err)
				}
			}
		}
	})

	err := g.Wait()
	log.Printf("castlelink: %s samples in %s, %s failed deliveries",
		humanize.Comma(count), time.Since(start).Round(time.Second), humanize.Comma(failed))
	if opts.Source == options.SourceSerial {
		log.Printf("serial: %s lines, %s skipped", humanize.Comma(int64(scanStats.Lines)), humanize.Comma(int64(scanStats.Skipped)))
	}
	if k.rec != nil {
		storeSummary(k.rec, opts.Database)
	}
	return err
}

// storeSummary logs the size of the recording and the newest row of each ESC.
func storeSummary(rec *store.Recorder, path string) {
	n, err := rec.Count()
	if err != nil {
		log.Printf("store: %v", err)
		return
	}
	size := "?"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	log.Printf("store: %s rows in %s (%s)", humanize.Comma(n), path, size)
	for esc := 0; esc < sequencer.MaxESCs; esc++ {
		rows, err := rec.Recent(esc, 1)
		if err != nil || len(rows) == 0 {
			continue
		}
		r := rows[0]
		log.Printf("store: esc %d last at %s, %.2f V %.2f A", esc, humanize.Time(r.Time()), r.Voltage, r.Current)
	}
}

func (k sinks) deliver(s source.Sample, opts options.Options) error {
	if opts.Verbose {
		log.Printf("esc %d: %.2f V %.2f A %.0f rpm %.1f C", s.ESC,
			s.Data.Voltage, s.Data.Current, s.Data.ShaftRPM(opts.Poles), s.Data.Temperature())
	}
	var errs []error
	if k.hub != nil {
		k.hub.Broadcast(s)
	}
	if k.mqtt != nil {
		errs = append(errs, k.mqtt.Publish(s))
	}
	if k.rec != nil {
		errs = append(errs, k.rec.Record(s))
	}
	return errors.Join(errs...)
}
