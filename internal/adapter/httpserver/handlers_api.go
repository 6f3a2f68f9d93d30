package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/app"
	"github.com/pscheid92/statusfeed/internal/domain"
	apperrors "github.com/pscheid92/statusfeed/internal/platform/errors"
)

type snapshotsResponse struct {
	Subscribers []subscriberSnapshots `json:"subscribers"`
}

type subscriberSnapshots struct {
	Name     string            `json:"name"`
	Services []serviceSnapshot `json:"services"`
}

// serviceSnapshot has nil HTML and UpdatedAt until the first successful render.
type serviceSnapshot struct {
	Service   domain.ServiceType `json:"service"`
	Account   string             `json:"account"`
	Interval  string             `json:"interval"`
	HTML      *string            `json:"html"`
	UpdatedAt *time.Time         `json:"updated_at"`
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api")
	api.GET("/snapshots", s.handleListSnapshots)
	api.GET("/snapshots/:name", s.handleGetSnapshots)
	api.GET("/snapshots/:name/:service", s.handleGetServiceSnapshot)
}

func (s *Server) handleListSnapshots(c echo.Context) error {
	resp := snapshotsResponse{Subscribers: []subscriberSnapshots{}}
	for _, subscriber := range s.subscribers.Subscribers() {
		resp.Subscribers = append(resp.Subscribers, newSubscriberSnapshots(subscriber))
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send snapshots: %w", err)
	}
	return nil
}

func (s *Server) handleGetSnapshots(c echo.Context) error {
	name := c.Param("name")
	subscriber, err := s.subscribers.Subscriber(name)
	if errors.Is(err, domain.ErrSubscriberNotFound) {
		return apperrors.NotFoundError("subscriber not found").WithField("name", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to look up subscriber", err)
	}

	if err := c.JSON(http.StatusOK, newSubscriberSnapshots(subscriber)); err != nil {
		return fmt.Errorf("failed to send snapshots: %w", err)
	}
	return nil
}

func (s *Server) handleGetServiceSnapshot(c echo.Context) error {
	name := c.Param("name")
	service, err := domain.ParseServiceType(c.Param("service"))
	if err != nil {
		return apperrors.ValidationError("unsupported service").WithField("service", c.Param("service"))
	}

	subscriber, err := s.subscribers.Subscriber(name)
	if errors.Is(err, domain.ErrSubscriberNotFound) {
		return apperrors.NotFoundError("subscriber not found").WithField("name", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to look up subscriber", err)
	}

	sub, ok := subscriber.Subscription(service)
	if !ok {
		return apperrors.NotFoundError("subscription not found").WithField("name", name).WithField("service", service.String())
	}

	if err := c.JSON(http.StatusOK, newServiceSnapshot(sub)); err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	return nil
}

func newSubscriberSnapshots(subscriber *app.Subscriber) subscriberSnapshots {
	out := subscriberSnapshots{Name: subscriber.Name, Services: []serviceSnapshot{}}
	for _, sub := range subscriber.Subscriptions {
		out.Services = append(out.Services, newServiceSnapshot(sub))
	}
	return out
}

func newServiceSnapshot(sub *app.Subscription) serviceSnapshot {
	entry := serviceSnapshot{Service: sub.Service, Account: sub.Account, Interval: sub.Interval.String()}
	if snap, ok := sub.CurrentSnapshot(); ok {
		entry.HTML = &snap.HTML
		entry.UpdatedAt = &snap.UpdatedAt
	}
	return entry
}
