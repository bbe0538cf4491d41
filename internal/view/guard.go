// Package view holds the interaction logic behind the task screens:
// route guarding, search, the "assigned to me" tab and the task form.
package view

import (
	"context"

	"github.com/gurkanbulca/taskboard/internal/remote"
)

// Route is a navigation target.
type Route string

const (
	RouteBoard  Route = "/"
	RouteSignIn Route = "/auth"
)

// Sessions is the part of the session manager the guard reads.
type Sessions interface {
	Wait(ctx context.Context) error
	User() *remote.User
}

// Guard keeps the board behind a resolved identity.
type Guard struct {
	sessions Sessions
}

func NewGuard(sessions Sessions) *Guard {
	return &Guard{sessions: sessions}
}

// Check blocks while the session is loading, then returns the board for a
// signed-in user and the sign-in route otherwise.
func (g *Guard) Check(ctx context.Context) (Route, error) {
	if err := g.sessions.Wait(ctx); err != nil {
		return "", err
	}
	if g.sessions.User() == nil {
		return RouteSignIn, nil
	}
	return RouteBoard, nil
}
