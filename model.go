package ecgnet

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/ml/layers/fnn"
)

// Hyperparameters of the waveform trunk. All live in the model's context, so
// they are saved and restored with checkpoints.
const (
	// ParamNumClasses is the size of the label vocabulary the model predicts.
	// Set by the training driver from the vocabulary, not by hand.
	ParamNumClasses = "num_classes"

	// ParamBaseFilters is the channel count of the first residual stage. Each
	// following stage doubles it.
	ParamBaseFilters = "seresnet_base_filters"

	// ParamNumStages is the number of residual stages. Every stage after the
	// first halves the time resolution.
	ParamNumStages = "seresnet_stages"

	// ParamBlocksPerStage is the number of residual blocks per stage.
	ParamBlocksPerStage = "seresnet_blocks_per_stage"

	// ParamSEReduction is the squeeze-and-excitation bottleneck ratio.
	ParamSEReduction = "seresnet_se_reduction"
)

// kernelSize is shared by the stem and every residual block.
const kernelSize = 7

// ModelGraph builds the classifier graph: a 1D squeeze-and-excitation residual
// network over the waveform window, concatenated with the hand-crafted feature
// vector and finished by an FNN head. It returns the logits, one per
// vocabulary class.
//
// inputs: [0] waveforms shaped [batch, window, NumLeads], [1] features shaped
// [batch, numFeatures].
func ModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	ctx = ctx.In("model")
	waves, feats := inputs[0], inputs[1]

	embedding := waveTrunk(ctx, waves)
	embedding = Concatenate([]*Node{embedding, feats}, -1)

	numClasses := context.GetParamOr(ctx, ParamNumClasses, 0)
	logits := fnn.New(ctx.In("head"), embedding, numClasses).Done()
	return []*Node{logits}
}

// waveTrunk reduces the waveform window [batch, window, leads] to an embedding
// [batch, channels] with a strided stem followed by SE residual stages and a
// global max pool over time.
func waveTrunk(ctx *context.Context, x *Node) *Node {
	baseFilters := context.GetParamOr(ctx, ParamBaseFilters, 32)
	numStages := context.GetParamOr(ctx, ParamNumStages, 4)
	blocksPerStage := context.GetParamOr(ctx, ParamBlocksPerStage, 2)

	// Stem: halve the time axis twice before the residual stages.
	ctxStem := ctx.In("stem")
	x = layers.Convolution(ctxStem, x).Filters(baseFilters).KernelSize(kernelSize).Strides(2).PadSame().Done()
	x = batchnorm.New(ctxStem, x, -1).Done()
	x = activations.Relu(x)
	x = MaxPool(x).Window(3).Strides(2).PadSame().Done()

	filters := baseFilters
	for stage := range numStages {
		ctxStage := ctx.Inf("stage_%d", stage)
		for block := range blocksPerStage {
			// First block of each stage but the first downsamples and widens.
			strides := 1
			if stage > 0 && block == 0 {
				strides = 2
				filters *= 2
			}
			x = seResidualBlock(ctxStage.Inf("block_%d", block), x, filters, strides)
		}
	}

	// Global max pool over time: rhythm events are sparse, the strongest
	// activation per channel is the signal.
	return ReduceMax(x, 1)
}

// seResidualBlock is one pre-activation-free residual block with channel
// gating: conv-BN-relu, conv-BN, squeeze-and-excitation, shortcut add, relu.
func seResidualBlock(ctx *context.Context, x *Node, filters, strides int) *Node {
	shortcut := x
	if strides != 1 || x.Shape().Dim(-1) != filters {
		ctxShort := ctx.In("shortcut")
		shortcut = layers.Convolution(ctxShort, shortcut).Filters(filters).KernelSize(1).Strides(strides).PadSame().Done()
		shortcut = batchnorm.New(ctxShort, shortcut, -1).Done()
	}

	ctx0 := ctx.In("conv_0")
	x = layers.Convolution(ctx0, x).Filters(filters).KernelSize(kernelSize).Strides(strides).PadSame().Done()
	x = batchnorm.New(ctx0, x, -1).Done()
	x = activations.Relu(x)

	ctx1 := ctx.In("conv_1")
	x = layers.Convolution(ctx1, x).Filters(filters).KernelSize(kernelSize).Strides(1).PadSame().Done()
	x = batchnorm.New(ctx1, x, -1).Done()

	x = squeezeExcite(ctx.In("se"), x)
	x = Add(x, shortcut)
	return activations.Relu(x)
}

// squeezeExcite rescales channels by a gate learned from their global
// averages: squeeze to [batch, channels], bottleneck, sigmoid, multiply back.
func squeezeExcite(ctx *context.Context, x *Node) *Node {
	reduction := context.GetParamOr(ctx, ParamSEReduction, 16)
	channels := x.Shape().Dim(-1)
	bottleneck := max(channels/reduction, 1)

	gate := ReduceMean(x, 1)
	gate = layers.DenseWithBias(ctx.In("squeeze"), gate, bottleneck)
	gate = activations.Relu(gate)
	gate = layers.DenseWithBias(ctx.In("excite"), gate, channels)
	gate = Sigmoid(gate)
	gate = ExpandAxes(gate, 1)
	return Mul(x, gate)
}
