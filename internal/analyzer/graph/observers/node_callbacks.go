package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"

	logx "github.com/chatlens/server/pkg/logger"
)

// NewNodeCallbacks traces every node of the analysis graph through the
// structured logger. Attached at Invoke time.
func NewNodeCallbacks() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if info != nil {
				logx.Debug().Str("node", info.Name).Str("type", info.Type).Msg("node start")
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			if info != nil {
				logx.Debug().Str("node", info.Name).Str("type", info.Type).Msg("node end")
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			if info != nil {
				logx.Error().Str("node", info.Name).Err(err).Msg("node error")
			}
			return ctx
		}).
		Build()
}
