package lightgbm

import (
	"math"

	"github.com/polishequity/analytics/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with a threshold split
	NumericalNode
)

// Node is a single node of a decision tree. Nodes live in Tree.Nodes and
// refer to each other by index.
type Node struct {
	NodeID     int
	ParentID   int // -1 for root
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf
	NodeType   NodeType

	// Split
	SplitFeature int
	Threshold    float64 // values <= Threshold go left
	DefaultLeft  bool    // direction for NaN
	Gain         float64

	// Leaf
	LeafValue float64
	LeafCount int

	// Output and row count the node would have as a leaf
	InternalValue float64
	InternalCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	TreeIndex     int
	Class         int
	NumLeaves     int
	NumNodes      int
	MaxDepth      int
	ShrinkageRate float64

	Nodes []Node
}

// Predict returns the shrunk leaf value for one sample.
func (t *Tree) Predict(features []float64) float64 {
	return t.Nodes[t.leafIndex(features)].LeafValue * t.ShrinkageRate
}

func (t *Tree) leafIndex(features []float64) int {
	nodeID := 0
	for {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return nodeID
		}
		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case v <= node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
}

// ObjectiveType represents the objective function type
type ObjectiveType string

// MulticlassObjective is the only objective the trainer fits.
const MulticlassObjective ObjectiveType = "multiclass"

// Model is a trained multiclass ensemble. Trees are stored iteration-major:
// tree i belongs to class i % NumClass.
type Model struct {
	Objective    ObjectiveType
	NumClass     int
	NumIteration int
	LearningRate float64
	NumLeaves    int
	MaxDepth     int

	Trees []Tree

	NumFeatures  int
	FeatureNames []string

	// InitScores holds the starting raw score of each class.
	InitScores []float64

	// BestIteration is the 1-based iteration chosen by early stopping.
	// Prediction uses only the trees up to it; 0 means all trees.
	BestIteration int
}

// NewModel creates a new empty model
func NewModel() *Model {
	return &Model{
		Objective:    MulticlassObjective,
		Trees:        make([]Tree, 0),
		LearningRate: 0.1,
		NumLeaves:    31,
		MaxDepth:     -1,
	}
}

// numTrees returns the tree count covering numIteration iterations; -1 or
// anything past the end means all trees.
func (m *Model) numTrees(numIteration int) int {
	if numIteration < 0 || numIteration*m.NumClass > len(m.Trees) {
		return len(m.Trees)
	}
	return numIteration * m.NumClass
}

// predictIteration is the iteration count used by batch prediction.
func (m *Model) predictIteration() int {
	if m.BestIteration > 0 {
		return m.BestIteration
	}
	return -1
}

// PredictRawSingle returns per-class raw scores for one sample using the
// first numIteration iterations (-1 for all).
func (m *Model) PredictRawSingle(features []float64, numIteration int) []float64 {
	raw := make([]float64, m.NumClass)
	copy(raw, m.InitScores)
	for i := 0; i < m.numTrees(numIteration); i++ {
		raw[i%m.NumClass] += m.Trees[i].Predict(features)
	}
	return raw
}

// PredictProbaSingle returns class probabilities for one sample.
func (m *Model) PredictProbaSingle(features []float64, numIteration int) []float64 {
	raw := m.PredictRawSingle(features, numIteration)
	return errors.Softmax(raw, raw)
}

// PredictRaw returns an n x NumClass matrix of raw scores.
func (m *Model) PredictRaw(X mat.Matrix) (*mat.Dense, error) {
	return NewPredictor(m).PredictRaw(X)
}

// PredictProba returns an n x NumClass matrix of class probabilities.
func (m *Model) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	return NewPredictor(m).PredictProba(X)
}

// Predict returns the argmax class key of each row.
func (m *Model) Predict(X mat.Matrix) ([]int, error) {
	return NewPredictor(m).Predict(X)
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// GetFeatureImportance returns normalised per-feature importance.
// importanceType is "split" (number of splits) or "gain" (total gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)

	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "split":
				importance[node.SplitFeature]++
			case "gain":
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}
