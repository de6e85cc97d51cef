package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Config holds training hyperparameters.
type Config struct {
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`
	Seed         uint64  `yaml:"seed"`
}

// DefaultConfig returns the baseline hyperparameters.
func DefaultConfig() Config {
	return Config{Epochs: 5, LearningRate: 0.003, BatchSize: 50, Seed: 1}
}

// Progress is reported once per finished epoch.
type Progress struct {
	Epoch  int
	Epochs int
	Loss   float64
}

// ProgressFunc receives training progress. It may be nil.
type ProgressFunc func(Progress)

// Example is one labeled training row.
type Example struct {
	Features []float32
	Class    int
}

var errNoExamples = errors.New("classifier: no training examples")

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// model is multinomial logistic regression over embedding features.
type model struct {
	classes int
	dim     int
	w       []float64 // classes x dim, row major
	b       []float64
}

// train fits a model with mini-batch Adam. It fails without producing a
// model on bad input or divergence.
func train(examples []Example, classes int, cfg Config, progress ProgressFunc) (*model, error) {
	if len(examples) == 0 {
		return nil, errNoExamples
	}
	if classes < 1 {
		return nil, fmt.Errorf("classifier: class count %d", classes)
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("classifier: invalid config %+v", cfg)
	}
	dim := len(examples[0].Features)
	if dim == 0 {
		return nil, errors.New("classifier: empty feature vector")
	}
	for i, ex := range examples {
		if len(ex.Features) != dim {
			return nil, fmt.Errorf("classifier: example %d has %d features, want %d", i, len(ex.Features), dim)
		}
		if ex.Class < 0 || ex.Class >= classes {
			return nil, fmt.Errorf("classifier: example %d has class %d of %d", i, ex.Class, classes)
		}
	}

	m := &model{classes: classes, dim: dim, w: make([]float64, classes*dim), b: make([]float64, classes)}
	params := len(m.w) + len(m.b)
	var (
		grad  = make([]float64, params)
		mom   = make([]float64, params)
		vel   = make([]float64, params)
		probs = make([]float64, classes)
		step  int
	)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var loss float64

		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			clear(grad)

			for _, idx := range order[start:end] {
				ex := examples[idx]
				m.softmax(ex.Features, probs)
				loss -= math.Log(math.Max(probs[ex.Class], 1e-12))
				for c := 0; c < classes; c++ {
					g := probs[c]
					if c == ex.Class {
						g--
					}
					row := grad[c*dim : (c+1)*dim]
					for j, x := range ex.Features {
						row[j] += g * float64(x)
					}
					grad[len(m.w)+c] += g
				}
			}

			step++
			n := float64(end - start)
			c1 := 1 - math.Pow(adamBeta1, float64(step))
			c2 := 1 - math.Pow(adamBeta2, float64(step))
			for i := range grad {
				g := grad[i] / n
				mom[i] = adamBeta1*mom[i] + (1-adamBeta1)*g
				vel[i] = adamBeta2*vel[i] + (1-adamBeta2)*g*g
				delta := cfg.LearningRate * (mom[i] / c1) / (math.Sqrt(vel[i]/c2) + adamEps)
				if i < len(m.w) {
					m.w[i] -= delta
				} else {
					m.b[i-len(m.w)] -= delta
				}
			}
		}

		loss /= float64(len(examples))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return nil, fmt.Errorf("classifier: training diverged at epoch %d", epoch)
		}
		if progress != nil {
			progress(Progress{Epoch: epoch, Epochs: cfg.Epochs, Loss: loss})
		}
	}
	return m, nil
}

// softmax writes class probabilities for x into out.
func (m *model) softmax(x []float32, out []float64) {
	maxLogit := math.Inf(-1)
	for c := 0; c < m.classes; c++ {
		z := m.b[c]
		row := m.w[c*m.dim : (c+1)*m.dim]
		for j, v := range x {
			z += row[j] * float64(v)
		}
		out[c] = z
		maxLogit = math.Max(maxLogit, z)
	}
	var sum float64
	for c := range out[:m.classes] {
		out[c] = math.Exp(out[c] - maxLogit)
		sum += out[c]
	}
	for c := range out[:m.classes] {
		out[c] /= sum
	}
}

// scores returns the class probabilities for one feature vector.
func (m *model) scores(x []float32) ([]float32, error) {
	if len(x) != m.dim {
		return nil, fmt.Errorf("classifier: got %d features, want %d", len(x), m.dim)
	}
	probs := make([]float64, m.classes)
	m.softmax(x, probs)
	out := make([]float32, m.classes)
	for i, p := range probs {
		out[i] = float32(p)
	}
	return out, nil
}
