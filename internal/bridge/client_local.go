package bridge

import (
	"context"
)

// LocalClient calls a Router in the same process. Arguments and results still go
// through JSON so handlers see exactly what a remote caller would send.
type LocalClient struct {
	router *Router
}

func NewLocalClient(router *Router) *LocalClient {
	return &LocalClient{router: router}
}

// Send implements license.Bridge
func (c *LocalClient) Send(ctx context.Context, channel string, args interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := NewRequest(channel, args)
	if err != nil {
		return err
	}
	return c.router.Dispatch(ctx, req).decode(out)
}
