package httpserver

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/statusfeed/internal/app"
	"github.com/pscheid92/statusfeed/internal/domain"
	apperrors "github.com/pscheid92/statusfeed/internal/platform/errors"
)

const dashboardTemplate = "index"

type dashboardPage struct {
	Title string
	Users []dashboardUser
}

type dashboardUser struct {
	Name     string
	Services []dashboardService
}

type dashboardService struct {
	Service   domain.ServiceType
	ElementID string
	HasData   bool
	HTML      template.HTML
}

func (s *Server) registerDashboardRoutes() {
	s.echo.GET("/", s.handleDashboard)
}

// handleDashboard serves the bootstrap page from the cached snapshots.
// Subscriptions without a snapshot render the "no data yet" placeholder.
func (s *Server) handleDashboard(c echo.Context) error {
	page := dashboardPage{Title: s.config.PageTitle}
	for _, subscriber := range s.subscribers.Subscribers() {
		page.Users = append(page.Users, newDashboardUser(subscriber))
	}

	html, err := s.renderer.RenderPage(dashboardTemplate, page)
	if err != nil {
		return apperrors.InternalError("failed to render page", err)
	}
	if err := c.HTML(http.StatusOK, html); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func newDashboardUser(subscriber *app.Subscriber) dashboardUser {
	user := dashboardUser{Name: subscriber.Name}
	for _, sub := range subscriber.Subscriptions {
		snap, ok := sub.CurrentSnapshot()
		user.Services = append(user.Services, dashboardService{
			Service:   sub.Service,
			ElementID: subscriber.Name + "-" + sub.Service.String(),
			HasData:   ok,
			HTML:      template.HTML(snap.HTML), //nolint:gosec // produced by html/template
		})
	}
	return user
}
