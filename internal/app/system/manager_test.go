package system

import (
	"context"
	"fmt"
	"testing"
)

type fakeService struct {
	name      string
	startErr  error
	stopErr   error
	started   bool
	stopped   bool
	startOrder *[]string
	stopOrder  *[]string
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	if f.startOrder != nil {
		*f.startOrder = append(*f.startOrder, f.name)
	}
	return nil
}
func (f *fakeService) Stop(ctx context.Context) error {
	f.stopped = true
	if f.stopOrder != nil {
		*f.stopOrder = append(*f.stopOrder, f.name)
	}
	return f.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	var startOrder, stopOrder []string
	m := NewManager()
	a := &fakeService{name: "a", startOrder: &startOrder, stopOrder: &stopOrder}
	b := &fakeService{name: "b", startOrder: &startOrder, stopOrder: &stopOrder}
	if err := m.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if fmt.Sprint(startOrder) != "[a b]" {
		t.Fatalf("unexpected start order: %v", startOrder)
	}
	if fmt.Sprint(stopOrder) != "[b a]" {
		t.Fatalf("unexpected stop order: %v", stopOrder)
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	m := NewManager()
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b", startErr: fmt.Errorf("boom")}
	_ = m.Register(a)
	_ = m.Register(b)

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if !a.stopped {
		t.Fatalf("expected already-started service to be rolled back")
	}
}

func TestManagerRegisterAfterStartFails(t *testing.T) {
	m := NewManager()
	_ = m.Register(&fakeService{name: "a"})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&fakeService{name: "late"}); err == nil {
		t.Fatalf("expected error registering after start")
	}
}
