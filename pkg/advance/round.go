package advance

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/immagent/immagent/pkg/asset"
	"github.com/immagent/immagent/pkg/logging"
)

// runToolRound executes every tool call in calls concurrently against
// tools, and returns one role=tool message per call, in calls' original
// order — never completion order. A failing call never aborts the round:
// its message content becomes "Error: <cause>" and the loop continues.
func runToolRound(ctx context.Context, tools ToolProvider, calls []asset.ToolCall) []*asset.Message {
	results := make([]*asset.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = executeOne(gctx, tools, call)
			return nil
		})
	}
	// g.Wait only ever returns an error if one of the goroutines above
	// returns one, and executeOne never does — tool failures are folded
	// into the result message, not propagated as a group error.
	_ = g.Wait()

	return results
}

func executeOne(ctx context.Context, tools ToolProvider, call asset.ToolCall) *asset.Message {
	log := logging.G(ctx).WithField("tool", call.Name).WithField("call_id", call.ID)

	output, err := tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		log.WithError(err).Warn("advance: tool execution failed")
		output = fmt.Sprintf("Error: %v", err)
	} else {
		log.Debug("advance: tool execution succeeded")
	}

	return asset.NewMessage(asset.RoleTool, output).WithToolCallID(call.ID)
}
