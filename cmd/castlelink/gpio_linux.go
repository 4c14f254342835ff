//go:build linux

package main

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/BryanSouza91/castlelink"
	"github.com/BryanSouza91/castlelink/hal/cdev"
	"github.com/BryanSouza91/castlelink/internal/options"
	"github.com/BryanSouza91/castlelink/internal/publish"
	"github.com/BryanSouza91/castlelink/internal/source"
)

// startGPIO runs a Link on the GPIO lines of opts and polls it into samples.
// With a broker, throttle and arm commands come from MQTT.
func startGPIO(ctx context.Context, g *errgroup.Group, opts options.Options, mq *publish.Client, samples chan<- source.Sample) error {
	board, err := cdev.Open(cdev.Config{
		Chip:        opts.Chip,
		ESCLines:    opts.ESCLines,
		ThrottleOut: opts.ThrottleOut,
		LED:         opts.LED,
	})
	if err != nil {
		return err
	}

	link := new(castlelink.Link)
	if err := link.Init(board); err != nil {
		board.Close()
		return err
	}
	link.AttachLinkHandler(func(esc int, ok bool) {
		log.Printf("esc %d: link ok %v", esc, ok)
	})
	if mq != nil {
		link.AttachThrottlePresenceHandler(mq.PublishPresence)
	}
	err = link.Begin(
		castlelink.WithESCs(len(opts.ESCLines)),
		castlelink.WithThrottlePin(opts.ThrottleIn),
		castlelink.WithWatchdogTimeout(opts.Watchdog),
	)
	if err != nil {
		board.Close()
		return err
	}
	if mq != nil {
		if err := mq.Subscribe(link); err != nil {
			board.Close()
			return err
		}
	}

	g.Go(func() error {
		defer board.Close()
		return link.Run(ctx)
	})
	g.Go(func() error {
		defer close(samples)
		return source.Poll(ctx, link, opts.Interval, samples)
	})
	return nil
}
