package ownership

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// CombineMethod selects how base-estimator predictions are combined into
// one ownership prediction (spec.md §4.4.5).
type CombineMethod string

const (
	CombineVoting   CombineMethod = "voting"
	CombineStacking CombineMethod = "stacking"
)

// EstimatorFactory builds a fresh, unfitted base estimator. The ensemble
// keeps factories rather than estimator instances so it can refit
// independent copies for each bootstrap resample.
type EstimatorFactory func() BaseEstimator

// projectionAware is implemented by estimators (currently only
// ProjectionEstimator) whose prediction depends on the slate's current
// projected points rather than archetype attributes alone.
type projectionAware interface {
	PredictWithProjection(driver dfstypes.Driver, projectedPoints float64) float64
}

// Ensemble combines the four base estimators of spec.md §4.4 by voting
// or stacking, with bootstrap resampling (B replicates) providing p05/p95
// uncertainty bands per spec.md §4.4.6.
type Ensemble struct {
	factories  []EstimatorFactory
	method     CombineMethod
	bootstrapB int
	seed       int64

	bases      []BaseEstimator
	weights    []float64
	meta       *stackingMeta
	bootstraps []*Ensemble // leaf ensembles fit on resampled rows; nil for bootstrap leaves themselves
}

// NewEnsemble constructs an ensemble over the given base-estimator
// factories. bootstrapB is the number of bootstrap resamples used for
// uncertainty bands (spec.md default is 100); pass 0 to disable bands.
func NewEnsemble(method CombineMethod, bootstrapB int, seed int64, factories ...EstimatorFactory) *Ensemble {
	return &Ensemble{
		factories:  factories,
		method:     method,
		bootstrapB: bootstrapB,
		seed:       seed,
	}
}

// Fit trains the primary ensemble and its bootstrap replicates.
// EstimatorUnderdetermined is returned when no base estimator reaches
// Ready() on the full training set, or when an ensemble built over two
// or more factories ends up with fewer than two ready bases. An ensemble
// built over a single factory degenerates to that estimator alone (the
// round-trip law in spec.md §8) and fits without error.
func (ens *Ensemble) Fit(rows []TrainingRow) error {
	bases, err := ens.fitBases(rows)
	if err != nil {
		return err
	}
	ens.bases = bases

	switch ens.method {
	case CombineStacking:
		meta, err := fitStackingMeta(bases, rows)
		if err != nil {
			return err
		}
		ens.meta = meta
	default:
		ens.weights = equalWeights(len(bases))
	}

	if ens.bootstrapB > 0 && len(rows) > 0 {
		rng := rand.New(rand.NewSource(ens.seed))
		ens.bootstraps = make([]*Ensemble, ens.bootstrapB)
		for b := 0; b < ens.bootstrapB; b++ {
			resampled := resampleWithReplacement(rows, rng)
			leaf := &Ensemble{factories: ens.factories, method: ens.method, bootstrapB: 0, seed: ens.seed + int64(b) + 1}
			if err := leaf.Fit(resampled); err != nil {
				continue // a degenerate resample just narrows the bootstrap set
			}
			ens.bootstraps[b] = leaf
		}
	}

	return nil
}

func (ens *Ensemble) fitBases(rows []TrainingRow) ([]BaseEstimator, error) {
	bases := make([]BaseEstimator, 0, len(ens.factories))
	for _, newEstimator := range ens.factories {
		b := newEstimator()
		if err := b.Fit(rows); err != nil {
			continue
		}
		if b.Ready() {
			bases = append(bases, b)
		}
	}
	if len(bases) == 0 {
		return nil, dfserrors.New(dfserrors.KindEstimatorUnderdetermined, "no base estimator reached ready state", nil)
	}
	if len(ens.factories) < 2 {
		// An ensemble deliberately constructed over a single factory is
		// the round-trip-law case from spec.md §8: it degenerates to
		// that one estimator directly, not an underdetermined ensemble.
		return bases, nil
	}
	if len(bases) < 2 {
		return nil, dfserrors.New(dfserrors.KindEstimatorUnderdetermined, "fewer than two base estimators reached ready state", nil)
	}
	return bases, nil
}

// Predict returns the ensemble's point ownership estimate for driver.
func (ens *Ensemble) Predict(driver dfstypes.Driver, trackArchetype string, projectedPoints float64) float64 {
	preds := basePredictions(ens.bases, driver, trackArchetype, projectedPoints)
	return ens.combine(preds)
}

// PredictWithUncertainty returns the point estimate plus p05/p95 bounds
// derived from the bootstrap replicate ensembles.
func (ens *Ensemble) PredictWithUncertainty(driver dfstypes.Driver, trackArchetype string, projectedPoints float64) dfstypes.OwnershipPrediction {
	mean := ens.Predict(driver, trackArchetype, projectedPoints)
	out := dfstypes.OwnershipPrediction{DriverID: driver.DriverID, Mean: mean, P05: mean, P95: mean}

	if len(ens.bootstraps) == 0 {
		return out
	}

	samples := make([]float64, 0, len(ens.bootstraps))
	for _, leaf := range ens.bootstraps {
		if leaf == nil || len(leaf.bases) == 0 {
			continue
		}
		samples = append(samples, leaf.Predict(driver, trackArchetype, projectedPoints))
	}
	if len(samples) == 0 {
		return out
	}

	sort.Float64s(samples)
	out.P05 = stat.Quantile(0.05, stat.Empirical, samples, nil)
	out.P95 = stat.Quantile(0.95, stat.Empirical, samples, nil)
	return out
}

func (ens *Ensemble) combine(preds []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	if ens.method == CombineStacking && ens.meta != nil {
		return ens.meta.predict(preds)
	}
	weights := ens.weights
	if len(weights) != len(preds) {
		weights = equalWeights(len(preds))
	}
	sum, sumW := 0.0, 0.0
	for i, p := range preds {
		sum += p * weights[i]
		sumW += weights[i]
	}
	if sumW == 0 {
		return 0
	}
	return clamp01(sum / sumW)
}

func basePredictions(bases []BaseEstimator, driver dfstypes.Driver, trackArchetype string, projectedPoints float64) []float64 {
	preds := make([]float64, len(bases))
	for i, b := range bases {
		if pa, ok := b.(projectionAware); ok {
			preds[i] = pa.PredictWithProjection(driver, projectedPoints)
			continue
		}
		preds[i] = b.Predict(driver, trackArchetype)
	}
	return preds
}

func equalWeights(n int) []float64 {
	if n == 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

func resampleWithReplacement(rows []TrainingRow, rng *rand.Rand) []TrainingRow {
	out := make([]TrainingRow, len(rows))
	for i := range out {
		out[i] = rows[rng.Intn(len(rows))]
	}
	return out
}

// stackingMeta is a single linear combination layer over base-estimator
// outputs, trained with gorgonia's Adam solver — the small meta-learner
// described in spec.md §4.4.5's "stacking" combine method, scaled down
// from the teacher's multi-layer network to a single weight vector since
// the input here is itself a small, already-informative score per base.
type stackingMeta struct {
	weights []float64
	bias    float64
}

func fitStackingMeta(bases []BaseEstimator, rows []TrainingRow) (*stackingMeta, error) {
	if len(bases) < 2 {
		// Stacking with one base is just that base; skip gradient descent.
		w := make([]float64, len(bases))
		for i := range w {
			w[i] = 1
		}
		return &stackingMeta{weights: w}, nil
	}

	n := len(rows)
	k := len(bases)
	x := make([]float64, n*k)
	y := make([]float64, n)
	for i, r := range rows {
		driver := dfstypes.Driver{DriverID: r.DriverID, Salary: int32(r.Salary), Archetype: dfstypes.ArchetypeAttrs{Skill: r.Skill}}
		preds := basePredictions(bases, driver, r.TrackArchetype, r.ProjectedPoints)
		copy(x[i*k:(i+1)*k], preds)
		y[i] = r.ActualOwnership
	}

	g := gorgonia.NewGraph()
	xT := tensor.New(tensor.WithBacking(x), tensor.WithShape(n, k))
	yT := tensor.New(tensor.WithBacking(y), tensor.WithShape(n, 1))

	xNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, k), gorgonia.WithName("x"), gorgonia.WithValue(xT))
	yNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n, 1), gorgonia.WithName("y"), gorgonia.WithValue(yT))
	wNode := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(k, 1), gorgonia.WithName("w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	bNode := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(1), gorgonia.WithName("b"), gorgonia.WithInit(gorgonia.Zeroes()))

	pred := gorgonia.Must(gorgonia.Mul(xNode, wNode))
	predBiased := gorgonia.Must(gorgonia.BroadcastAdd(pred, bNode, nil, []byte{1}))
	diff := gorgonia.Must(gorgonia.Sub(predBiased, yNode))
	sq := gorgonia.Must(gorgonia.Square(diff))
	loss := gorgonia.Must(gorgonia.Mean(sq))

	_, err := gorgonia.Grad(loss, wNode, bNode)
	if err != nil {
		return nil, dfserrors.Wrap(dfserrors.KindEstimatorUnderdetermined, "building stacking meta-learner graph", nil, err)
	}

	machine := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(wNode, bNode))
	defer machine.Close()
	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(0.05))

	trainable := gorgonia.Nodes{wNode, bNode}
	trainableVG := make([]gorgonia.ValueGrad, len(trainable))
	for i, node := range trainable {
		trainableVG[i] = node
	}

	const epochs = 200
	for epoch := 0; epoch < epochs; epoch++ {
		if err := machine.RunAll(); err != nil {
			return nil, dfserrors.Wrap(dfserrors.KindEstimatorUnderdetermined, "training stacking meta-learner", nil, err)
		}
		if err := solver.Step(trainableVG); err != nil {
			return nil, dfserrors.Wrap(dfserrors.KindEstimatorUnderdetermined, "stepping stacking meta-learner solver", nil, err)
		}
		machine.Reset()
	}

	wData := wNode.Value().Data().([]float64)
	bData := bNode.Value().Data().([]float64)

	weights := make([]float64, k)
	copy(weights, wData)
	return &stackingMeta{weights: weights, bias: bData[0]}, nil
}

func (m *stackingMeta) predict(preds []float64) float64 {
	sum := m.bias
	for i, p := range preds {
		if i >= len(m.weights) {
			break
		}
		sum += p * m.weights[i]
	}
	return clamp01(sum)
}
