package lightgbm

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/polishequity/analytics/core/parallel"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/pkg/telemetry"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Trainer fits a multiclass gradient boosted ensemble with leaf-wise,
// histogram based trees.
type Trainer struct {
	params TrainingParams

	// Data
	X        *mat.Dense
	y        []int
	numClass int

	// Histogram data: binned[f][i] is the bin of row i on feature f
	mappers []binMapper
	binned  [][]uint16

	// Raw scores, row-major n x numClass
	scores    []float64
	gradients [][]float64
	hessians  [][]float64

	trees      []Tree
	iteration  int
	initScores []float64

	// bestIteration is carried between callback dispatches; 0 means unset.
	bestIteration int

	numThreads     int
	objective      MulticlassObjectiveFunction
	sampler        *SamplingStrategy
	regularization *RegularizationStrategy
	callbacks      *CallbackList
	logger         log.Logger
}

// Histogram accumulates gradient statistics of one bin.
type Histogram struct {
	Count   int
	SumGrad float64
	SumHess float64
}

// SplitInfo describes the best split found for a leaf. Feature is -1 when
// no valid split exists.
type SplitInfo struct {
	Feature    int
	Bin        int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
	LeftGrad   float64
	RightGrad  float64
	LeftHess   float64
	RightHess  float64
}

// NewTrainer creates a new trainer. Zero values fall back to defaults.
func NewTrainer(params TrainingParams) *Trainer {
	def := DefaultParams()
	if params.NumIterations == 0 {
		params.NumIterations = def.NumIterations
	}
	if params.LearningRate == 0 {
		params.LearningRate = def.LearningRate
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = def.NumLeaves
	}
	if params.MaxBin == 0 {
		params.MaxBin = def.MaxBin
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = def.MinDataInLeaf
	}
	if params.BaggingFraction == 0 {
		params.BaggingFraction = def.BaggingFraction
	}
	if params.FeatureFraction == 0 {
		params.FeatureFraction = def.FeatureFraction
	}

	numThreads := params.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	return &Trainer{
		params:         params,
		numThreads:     numThreads,
		sampler:        NewSamplingStrategy(params),
		regularization: NewRegularizationStrategy(params),
		logger:         log.GetLoggerWithName("lightgbm.trainer"),
	}
}

// WithCallbacks sets the callbacks for training
func (t *Trainer) WithCallbacks(callbacks ...Callback) *Trainer {
	t.callbacks = NewCallbackList(callbacks...)
	return t
}

// Fit trains the ensemble on X with class indices y in [0, NumClass).
// NumClass of zero is inferred as max(y)+1.
func (t *Trainer) Fit(ctx context.Context, X *mat.Dense, y []int) (err error) {
	defer errors.Recover(&err, "Trainer.Fit")

	if err := t.params.Validate(); err != nil {
		return err
	}
	if err := t.initialize(X, y); err != nil {
		return err
	}

	start := time.Now()
	t.logger.Info("Training started",
		log.SamplesKey, len(y),
		log.FeaturesKey, len(t.mappers),
		log.ClassesKey, t.numClass,
		log.NumLeavesKey, t.params.NumLeaves,
		log.LearningRateKey, t.params.LearningRate,
	)

	initialLoss := t.objective.Loss(t.y, t.scores)
	loss := initialLoss

	for iter := 0; iter < t.params.NumIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "training cancelled at iteration %d", iter)
		}
		t.iteration = iter

		if t.callbacks != nil {
			model := t.GetModel()
			if err := t.callbacks.BeforeIteration(iter, model); err != nil {
				return errors.Wrapf(err, "callback error at iteration %d", iter)
			}
			t.bestIteration = model.BestIteration
			if t.callbacks.ShouldStop() {
				t.logger.Info("Training stopped by callback", log.IterationKey, iter)
				break
			}
		}

		if err := t.boostOneIteration(ctx); err != nil {
			return errors.Wrapf(err, "tree building failed at iteration %d", iter)
		}
		telemetry.Observer.Iteration()

		loss = t.objective.Loss(t.y, t.scores)
		if t.callbacks != nil {
			evalResults := map[string]float64{t.objective.Name(): loss}
			model := t.GetModel()
			if err := t.callbacks.AfterIteration(iter, model, evalResults); err != nil {
				return errors.Wrapf(err, "callback error at iteration %d", iter)
			}
			t.bestIteration = model.BestIteration
			if t.callbacks.ShouldStop() {
				t.logger.Info("Training stopped by callback", log.IterationKey, iter)
				break
			}
		}
	}

	if len(t.trees) > 0 && loss >= initialLoss {
		errors.Warn(errors.NewConvergenceWarning("lightgbm", len(t.trees)/t.numClass,
			"training loss did not decrease"))
	}

	t.logger.Info("Training completed",
		log.TreesKey, len(t.trees),
		"best_iteration", t.bestIteration,
		log.LossKey, loss,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// FitMulticlass is Fit with an explicit class count.
func (t *Trainer) FitMulticlass(ctx context.Context, X *mat.Dense, y []int, numClass int) error {
	t.params.NumClass = numClass
	return t.Fit(ctx, X, y)
}

// initialize validates the data and prepares bins, scores and buffers.
func (t *Trainer) initialize(X *mat.Dense, y []int) error {
	if X == nil {
		return errors.ErrEmptyData
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}
	if len(y) != rows {
		return errors.NewDimensionError("Trainer.Fit", rows, len(y), 0)
	}

	numClass := t.params.NumClass
	if numClass == 0 {
		for _, c := range y {
			numClass = max(numClass, c+1)
		}
	}
	for i, c := range y {
		if c < 0 || c >= numClass {
			return errors.NewValueError("Trainer.Fit",
				"class index out of range at row "+strconv.Itoa(i))
		}
	}
	if err := errors.CheckFinite("Trainer.Fit", X.RawMatrix().Data); err != nil {
		return err
	}

	t.X = X
	t.y = y
	t.numClass = numClass
	t.trees = nil
	t.bestIteration = 0
	t.objective = NewMulticlassSoftmax(numClass, t.numThreads)
	t.sampler = NewSamplingStrategy(t.params)

	t.buildHistogramBins()

	t.initScores = t.objective.InitScores(y)
	t.scores = make([]float64, rows*numClass)
	for i := 0; i < rows; i++ {
		copy(t.scores[i*numClass:(i+1)*numClass], t.initScores)
	}

	t.gradients = make([][]float64, numClass)
	t.hessians = make([][]float64, numClass)
	for k := range t.gradients {
		t.gradients[k] = make([]float64, rows)
		t.hessians[k] = make([]float64, rows)
	}
	return nil
}

// buildHistogramBins computes bin boundaries and binned values per feature.
func (t *Trainer) buildHistogramBins() {
	rows, cols := t.X.Dims()
	t.mappers = make([]binMapper, cols)
	t.binned = make([][]uint16, cols)

	parallel.ParallelizeN(cols, t.numThreads, func(start, end int) {
		column := make([]float64, rows)
		for f := start; f < end; f++ {
			mat.Col(column, f, t.X)
			m := newBinMapper(column, t.params.MaxBin)
			bins := make([]uint16, rows)
			for i, v := range column {
				bins[i] = uint16(m.bin(v))
			}
			t.mappers[f] = m
			t.binned[f] = bins
		}
	})
}

// boostOneIteration adds one tree per class. Sampling is drawn up front in
// class order so results do not depend on goroutine scheduling.
func (t *Trainer) boostOneIteration(ctx context.Context) error {
	t.objective.Gradients(t.y, t.scores, t.gradients, t.hessians)

	bag := t.sampler.SampleInstances(len(t.y), t.iteration)
	features := make([][]int, t.numClass)
	for k := range features {
		features[k] = t.sampler.SampleFeatures(len(t.mappers))
	}

	trees := make([]Tree, t.numClass)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.numThreads)
	for k := 0; k < t.numClass; k++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trees[k] = t.buildTree(k, bag, features[k])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for k := range trees {
		trees[k].TreeIndex = len(t.trees)
		t.trees = append(t.trees, trees[k])
	}
	return nil
}

// leaf is a growing leaf with its rows and histograms.
type leaf struct {
	node    int
	depth   int
	indices []int
	sumGrad float64
	sumHess float64
	hist    [][]Histogram
	best    SplitInfo
}

// buildTree grows one tree for class k leaf-wise and adds its output to
// the class scores.
func (t *Trainer) buildTree(k int, bag, features []int) Tree {
	grad, hess := t.gradients[k], t.hessians[k]

	root := &leaf{indices: append([]int(nil), bag...)}
	for _, i := range root.indices {
		root.sumGrad += grad[i]
		root.sumHess += hess[i]
	}
	root.hist = t.buildHistograms(root.indices, features, grad, hess)

	tree := Tree{
		Class:         k,
		ShrinkageRate: t.params.LearningRate,
		Nodes:         []Node{newLeafNode(0, -1)},
	}
	t.findBestSplit(root, features)
	leaves := []*leaf{root}

	for len(leaves) < t.params.NumLeaves {
		bestIdx := -1
		for i, l := range leaves {
			if l.best.Feature < 0 {
				continue
			}
			if bestIdx < 0 || l.best.Gain > leaves[bestIdx].best.Gain {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		parent := leaves[bestIdx]
		left, right := t.split(&tree, parent, features, grad, hess)
		leaves[bestIdx] = left
		leaves = append(leaves, right)
		t.findBestSplit(left, features)
		t.findBestSplit(right, features)
	}

	for _, l := range leaves {
		node := &tree.Nodes[l.node]
		node.LeafValue = t.regularization.LeafOutput(l.sumGrad, l.sumHess)
		node.LeafCount = len(l.indices)
		node.InternalValue = node.LeafValue
		node.InternalCount = node.LeafCount
		tree.MaxDepth = max(tree.MaxDepth, l.depth)
	}
	tree.NumLeaves = len(leaves)
	tree.NumNodes = len(tree.Nodes)

	t.updateScores(&tree, k, leaves, len(bag) < len(t.y))
	return tree
}

func newLeafNode(id, parent int) Node {
	return Node{
		NodeID:       id,
		ParentID:     parent,
		LeftChild:    -1,
		RightChild:   -1,
		NodeType:     LeafNode,
		SplitFeature: -1,
	}
}

// buildHistograms accumulates per-bin statistics of the given rows.
func (t *Trainer) buildHistograms(indices, features []int, grad, hess []float64) [][]Histogram {
	hist := make([][]Histogram, len(t.mappers))
	for _, f := range features {
		h := make([]Histogram, t.mappers[f].numBins())
		bins := t.binned[f]
		for _, i := range indices {
			b := &h[bins[i]]
			b.Count++
			b.SumGrad += grad[i]
			b.SumHess += hess[i]
		}
		hist[f] = h
	}
	return hist
}

// subtractHistograms returns parent - child per bin.
func subtractHistograms(parent, child [][]Histogram, features []int) [][]Histogram {
	out := make([][]Histogram, len(parent))
	for _, f := range features {
		h := make([]Histogram, len(parent[f]))
		for b := range h {
			h[b] = Histogram{
				Count:   parent[f][b].Count - child[f][b].Count,
				SumGrad: parent[f][b].SumGrad - child[f][b].SumGrad,
				SumHess: parent[f][b].SumHess - child[f][b].SumHess,
			}
		}
		out[f] = h
	}
	return out
}

// findBestSplit sets l.best to the highest-gain split over the sampled
// features. Ties keep the earlier feature and bin.
func (t *Trainer) findBestSplit(l *leaf, features []int) {
	l.best = SplitInfo{Feature: -1, Gain: t.params.MinGainToSplit}
	if t.params.MaxDepth > 0 && l.depth >= t.params.MaxDepth {
		return
	}
	if len(l.indices) < 2*t.params.MinDataInLeaf {
		return
	}

	for _, f := range features {
		if split, ok := t.findBestSplitForFeature(l, f); ok && split.Gain > l.best.Gain && split.Gain > 0 {
			l.best = split
		}
	}
}

func (t *Trainer) findBestSplitForFeature(l *leaf, f int) (SplitInfo, bool) {
	hist := l.hist[f]
	best := SplitInfo{Feature: -1}
	found := false

	var leftCount int
	var leftGrad, leftHess float64
	for b := 0; b < len(hist)-1; b++ {
		leftCount += hist[b].Count
		leftGrad += hist[b].SumGrad
		leftHess += hist[b].SumHess
		if hist[b].Count == 0 {
			continue
		}

		rightCount := len(l.indices) - leftCount
		rightGrad := l.sumGrad - leftGrad
		rightHess := l.sumHess - leftHess
		if leftCount < t.params.MinDataInLeaf || rightCount < t.params.MinDataInLeaf {
			continue
		}
		if leftHess < t.params.MinSumHessianInLeaf || rightHess < t.params.MinSumHessianInLeaf {
			continue
		}

		gain := t.regularization.SplitGain(leftGrad, leftHess, rightGrad, rightHess, l.sumGrad, l.sumHess)
		if !found || gain > best.Gain {
			found = true
			best = SplitInfo{
				Feature:    f,
				Bin:        b,
				Threshold:  t.mappers[f].threshold(b),
				Gain:       gain,
				LeftCount:  leftCount,
				RightCount: rightCount,
				LeftGrad:   leftGrad,
				RightGrad:  rightGrad,
				LeftHess:   leftHess,
				RightHess:  rightHess,
			}
		}
	}
	return best, found
}

// split turns parent's node into an internal node and returns its children.
// The smaller child's histogram is built directly, the larger one by
// subtraction.
func (t *Trainer) split(tree *Tree, parent *leaf, features []int, grad, hess []float64) (*leaf, *leaf) {
	s := parent.best
	bins := t.binned[s.Feature]

	leftIdx := make([]int, 0, s.LeftCount)
	rightIdx := make([]int, 0, s.RightCount)
	for _, i := range parent.indices {
		if int(bins[i]) <= s.Bin {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	leftID, rightID := len(tree.Nodes), len(tree.Nodes)+1
	node := &tree.Nodes[parent.node]
	node.NodeType = NumericalNode
	node.SplitFeature = s.Feature
	node.Threshold = s.Threshold
	node.Gain = s.Gain
	node.DefaultLeft = true
	node.LeftChild = leftID
	node.RightChild = rightID
	node.InternalValue = t.regularization.LeafOutput(parent.sumGrad, parent.sumHess)
	node.InternalCount = len(parent.indices)
	tree.Nodes = append(tree.Nodes, newLeafNode(leftID, parent.node), newLeafNode(rightID, parent.node))

	left := &leaf{node: leftID, depth: parent.depth + 1, indices: leftIdx, sumGrad: s.LeftGrad, sumHess: s.LeftHess}
	right := &leaf{node: rightID, depth: parent.depth + 1, indices: rightIdx, sumGrad: s.RightGrad, sumHess: s.RightHess}

	if len(leftIdx) <= len(rightIdx) {
		left.hist = t.buildHistograms(leftIdx, features, grad, hess)
		right.hist = subtractHistograms(parent.hist, left.hist, features)
	} else {
		right.hist = t.buildHistograms(rightIdx, features, grad, hess)
		left.hist = subtractHistograms(parent.hist, right.hist, features)
	}
	parent.hist = nil
	return left, right
}

// updateScores adds the new tree's output to column k of the scores. In-bag
// rows use their leaf membership; out-of-bag rows traverse the tree.
func (t *Trainer) updateScores(tree *Tree, k int, leaves []*leaf, bagged bool) {
	var inBag []bool
	if bagged {
		inBag = make([]bool, len(t.y))
	}
	for _, l := range leaves {
		delta := tree.Nodes[l.node].LeafValue * tree.ShrinkageRate
		for _, i := range l.indices {
			t.scores[i*t.numClass+k] += delta
			if bagged {
				inBag[i] = true
			}
		}
	}
	if !bagged {
		return
	}
	_, cols := t.X.Dims()
	row := make([]float64, cols)
	for i, ok := range inBag {
		if ok {
			continue
		}
		mat.Row(row, i, t.X)
		t.scores[i*t.numClass+k] += tree.Predict(row)
	}
}

// GetModel returns the ensemble trained so far.
func (t *Trainer) GetModel() *Model {
	model := NewModel()
	model.Trees = t.trees
	model.NumClass = t.numClass
	model.NumIteration = len(t.trees) / max(t.numClass, 1)
	model.LearningRate = t.params.LearningRate
	model.NumLeaves = t.params.NumLeaves
	model.MaxDepth = t.params.MaxDepth
	model.InitScores = append([]float64(nil), t.initScores...)
	model.BestIteration = t.bestIteration
	if t.X != nil {
		_, model.NumFeatures = t.X.Dims()
	}
	return model
}
