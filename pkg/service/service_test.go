package service

import (
	"context"
	"errors"
	"testing"
)

type fake struct {
	name    string
	started bool
	stopped bool
	err     error
}

func (f *fake) Run()                           { f.started = true }
func (f *fake) Shutdown(context.Context) error { f.stopped = true; return f.err }
func (f *fake) String() string                 { return f.name }

func TestGroupLifecycle(t *testing.T) {
	a, b := &fake{name: "a"}, &fake{name: "b"}
	g := Group{}
	g.Add(a, b)
	g.Start()
	if !a.started || !b.started {
		t.Error("not every service was started")
	}
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	if !a.stopped || !b.stopped {
		t.Error("not every service was stopped")
	}
}

func TestGroupShutdownKeepsGoing(t *testing.T) {
	broken := &fake{name: "broken", err: errors.New("boom")}
	ok := &fake{name: "ok"}
	g := Group{}
	g.Add(broken, ok)
	if err := g.Shutdown(context.Background()); err == nil {
		t.Error("Shutdown() = nil, want the collected failure")
	}
	if !ok.stopped {
		t.Error("a failing service blocked the rest of the group")
	}
}

func TestGroupIgnoresCancellation(t *testing.T) {
	s := &fake{name: "s", err: context.Canceled}
	g := Group{}
	g.Add(s)
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want cancellation swallowed", err)
	}
}
