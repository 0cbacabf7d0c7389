package ecgnet

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
)

// NewPredictExec compiles the model for inference: it takes the normalized
// waveform window and feature vector (both batched) and returns the per-class
// sigmoid probabilities. The context must already hold the trained variables.
func NewPredictExec(backend backends.Backend, ctx *context.Context) *context.Exec {
	return context.NewExec(backend, ctx, func(ctx *context.Context, waves, feats *Node) *Node {
		logits := ModelGraph(ctx, nil, []*Node{waves, feats})[0]
		return Sigmoid(logits)
	})
}
