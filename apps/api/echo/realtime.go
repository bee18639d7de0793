package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/services/realtime"
)

func registerRealtimeAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, hub *realtime.Hub) {
	wg := g.Group("/ws", jwt)
	wg.GET("/farm", serveNamespace(auth, hub, core.ChannelFarm), studentMiddleware())
	wg.GET("/pet", serveNamespace(auth, hub, core.ChannelPet), studentMiddleware())
}

// serveNamespace upgrades the connection & blocks until the client goes away.
func serveNamespace(auth *authenticator, hub *realtime.Hub, namespace string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := auth.contextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if err := hub.Serve(ctx.Response(), ctx.Request(), namespace, usr.ID); err != nil {
			return errors.Wrap(err, "serving "+namespace+" events")
		}
		return nil
	}
}
