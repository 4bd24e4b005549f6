package service

import (
	"context"
	"errors"
	"fmt"
)

// Runnable is a background service with a start/stop lifecycle.
type Runnable interface {
	Run()
	Shutdown(ctx context.Context) error
}

// Group starts and stops a set of services together.
type Group struct {
	list []Runnable
}

func (g *Group) Add(services ...Runnable) { g.list = append(g.list, services...) }

func (g *Group) Start() {
	for _, s := range g.list {
		s.Run()
	}
}

// Shutdown stops every service in the group; a failing one does not
// keep the rest from stopping.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range g.list {
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("stop %s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
