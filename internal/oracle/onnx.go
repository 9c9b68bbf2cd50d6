package oracle

import (
	"fmt"
	"sync"

	gonnx "github.com/advancedclimatesystems/gonnx"
	"github.com/notnil/chess"
	"gorgonia.org/tensor"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// onnxInputName and onnxOutputName match the exported value network graph.
const (
	onnxInputName  = "board"
	onnxOutputName = "value"
)

// valueScale converts the network's [-1, 1] output to centipawns.
const valueScale = 600

// ONNXOracle runs a value network with gonnx (pure Go ONNX runtime). The
// network scores positions only; BestMove is a one-ply argmax over the
// legal moves. Inference is serialized: gonnx models are not safe for
// concurrent Run calls.
type ONNXOracle struct {
	model *gonnx.Model
	mu    sync.Mutex
}

// NewONNXOracle loads the value network from the given path.
func NewONNXOracle(modelPath string) (*ONNXOracle, error) {
	model, err := gonnx.NewModelFromFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx oracle: load model: %w", err)
	}
	return &ONNXOracle{model: model}, nil
}

// Name returns the oracle name.
func (o *ONNXOracle) Name() string { return "onnx" }

// Close is a no-op; gonnx models hold no external resources.
func (o *ONNXOracle) Close() error { return nil }

// Evaluate encodes the position and runs the value network.
func (o *ONNXOracle) Evaluate(s *board.State) (Score, error) {
	if s.Terminal() {
		return terminalScore(s), nil
	}

	v, err := o.run(EncodeState(s))
	if err != nil {
		return Score{}, err
	}
	cp := int(v * valueScale)
	return Score{CP: &cp}, nil
}

// BestMove evaluates each legal move one ply ahead and returns the move
// with the best resulting score for the side to move.
func (o *ONNXOracle) BestMove(s *board.State) (*chess.Move, Score, error) {
	legal := s.LegalMoves()
	if len(legal) == 0 {
		return nil, terminalScore(s), fmt.Errorf("no legal moves")
	}

	white := s.SideToMove() == chess.White
	var best *chess.Move
	var bestScore Score
	bestCP := 0
	for _, m := range legal {
		sc, err := o.Evaluate(s.Apply(m))
		if err != nil {
			return nil, Score{}, fmt.Errorf("onnx oracle: score move %s: %w", m, err)
		}
		cp := *sc.Centipawns()
		if best == nil || (white && cp > bestCP) || (!white && cp < bestCP) {
			best = m
			bestScore = sc
			bestCP = cp
		}
	}
	return best, bestScore, nil
}

// run executes the value network on an encoded position and returns the
// scalar output.
func (o *ONNXOracle) run(data []float32) (float32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	in := tensor.New(
		tensor.WithShape(1, NumPlanes, 8, 8),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	)

	outputs, err := o.model.Run(gonnx.Tensors{onnxInputName: in})
	if err != nil {
		return 0, fmt.Errorf("onnx oracle: run: %w", err)
	}

	out, ok := outputs[onnxOutputName]
	if !ok {
		// Single-output models exported under a different name.
		for _, t := range outputs {
			out = t
			break
		}
	}
	if out == nil {
		return 0, fmt.Errorf("onnx oracle: model produced no outputs")
	}

	vals, ok := out.Data().([]float32)
	if ok && len(vals) > 0 {
		return vals[0], nil
	}
	if v, ok := out.Data().(float32); ok {
		return v, nil
	}
	return 0, fmt.Errorf("onnx oracle: unexpected output type %T", out.Data())
}
