package tests

import (
	"context"
	"errors"
	"sync"
	"trip_planner/planner/mail"
	"trip_planner/planner/routing"
	"trip_planner/planner/staticmap"
	"trip_planner/planner/storage"
)

type routingStub struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func newRoutingStub() *routingStub {
	return &routingStub{}
}

func (s *routingStub) Name() string {
	return "stub"
}

func (s *routingStub) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *routingStub) Route(ctx context.Context, from, to routing.LatLng, mode string) (routing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, mode)
	if s.err != nil {
		return routing.Result{}, s.err
	}

	result := routing.Result{
		Distance: 1000 * (len(s.calls)),
		Duration: 600,
		Geometry: [][2]float64{{from.Longitude, from.Latitude}, {to.Longitude, to.Latitude}},
	}

	if mode == "public_transport" {
		result.TransitDetails = &routing.TransitDetails{
			Steps: []routing.TransitStep{{TravelMode: "transit", Line: "U2", Vehicle: "subway", NumStops: 4}},
		}
		result.Alternatives = []routing.Alternative{{Summary: "Bus 100", Distance: 1200, Duration: 900}}
		result.Warning = "schedules may change"
	}

	return result, nil
}

type mapStub struct {
	mu    sync.Mutex
	image []byte
	err   error
	calls []staticmap.Viewport
}

func (s *mapStub) Image(ctx context.Context, viewport staticmap.Viewport) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, viewport)
	if s.err != nil {
		return nil, s.err
	}
	return s.image, nil
}

// Wraps shared disk storage so tests can simulate a full disk.
type storageStub struct {
	storage.Storage
	full bool
}

func (s *storageStub) Usage() (storage.UsageStats, error) {
	if s.full {
		return storage.UsageStats{TotalBytes: 100 * 1024 * 1024 * 1024, FreeBytes: 0}, nil
	}
	return storage.UsageStats{TotalBytes: 100 * 1024 * 1024 * 1024, FreeBytes: 50 * 1024 * 1024 * 1024}, nil
}

type mailerStub struct {
	*mail.LogMailer

	mu   sync.Mutex
	fail bool
}

func (s *mailerStub) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *mailerStub) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()

	if fail {
		return errors.New("smtp server unavailable")
	}
	return s.LogMailer.Send(ctx, msg)
}
