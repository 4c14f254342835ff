//go:build !linux

package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/BryanSouza91/castlelink/internal/options"
	"github.com/BryanSouza91/castlelink/internal/publish"
	"github.com/BryanSouza91/castlelink/internal/source"
)

func startGPIO(ctx context.Context, g *errgroup.Group, opts options.Options, mq *publish.Client, samples chan<- source.Sample) error {
	return errors.New("the gpio source needs Linux; use -source serial")
}
