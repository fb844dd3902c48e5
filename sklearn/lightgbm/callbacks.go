package lightgbm

import (
	"math"
	"sort"
	"time"

	"github.com/polishequity/analytics/pkg/log"
)

// CallbackEnv is the state passed to callbacks. EvalResults is empty before
// an iteration and holds the training metrics keyed by objective name after
// it. Setting StopTraining ends training once the current dispatch returns.
type CallbackEnv struct {
	Model        *Model
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback observes or stops training.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs evaluation results every period iterations.
func LogEvaluation(period int) Callback {
	logger := log.GetLoggerWithName("lightgbm.callbacks")
	return func(env *CallbackEnv) error {
		if period <= 0 || env.Iteration%period != 0 || len(env.EvalResults) == 0 {
			return nil
		}
		names := make([]string, 0, len(env.EvalResults))
		for name := range env.EvalResults {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := []any{log.IterationKey, env.Iteration}
		for _, name := range names {
			fields = append(fields, name, env.EvalResults[name])
		}
		logger.Info("Training progress", fields...)
		return nil
	}
}

// RecordEvaluation appends every reported metric to history, one entry per
// iteration.
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// EarlyStoppingCallback stops training when metric has not improved for
// rounds iterations and records the best iteration on the model.
func EarlyStoppingCallback(rounds int, metric string, minimize bool) Callback {
	logger := log.GetLoggerWithName("lightgbm.callbacks")
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}
	bestIteration := 0
	roundsNoImprove := 0

	return func(env *CallbackEnv) error {
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}

		improved := value > bestScore
		if minimize {
			improved = value < bestScore
		}
		if improved {
			bestScore = value
			bestIteration = env.Iteration
			roundsNoImprove = 0
		} else {
			roundsNoImprove++
		}
		if env.Model != nil {
			env.Model.BestIteration = bestIteration + 1
		}

		if roundsNoImprove >= rounds {
			logger.Info("Early stopping",
				log.IterationKey, env.Iteration,
				"best_iteration", bestIteration,
				metric, bestScore,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training after a specified duration
func TimeLimit(maxDuration time.Duration) Callback {
	logger := log.GetLoggerWithName("lightgbm.callbacks")
	startTime := time.Now()
	return func(env *CallbackEnv) error {
		if time.Since(startTime) > maxDuration {
			logger.Warn("Time limit reached", log.IterationKey, env.Iteration)
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList runs callbacks around each boosting iteration and shares one
// CallbackEnv between them, so a stop request from any callback is visible
// to the trainer through ShouldStop.
type CallbackList struct {
	callbacks []Callback
	env       CallbackEnv
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{callbacks: callbacks}
}

// BeforeIteration runs the callbacks with empty results. Dispatch stops at
// the first callback that requests a stop.
func (cl *CallbackList) BeforeIteration(iteration int, model *Model) error {
	cl.env.BeginTime = time.Now()
	return cl.dispatch(iteration, model, map[string]float64{}, true)
}

// AfterIteration runs every callback with the iteration's training metrics.
func (cl *CallbackList) AfterIteration(iteration int, model *Model, evalResults map[string]float64) error {
	cl.env.EndTime = time.Now()
	return cl.dispatch(iteration, model, evalResults, false)
}

func (cl *CallbackList) dispatch(iteration int, model *Model, results map[string]float64, haltOnStop bool) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.EvalResults = results
	for _, cb := range cl.callbacks {
		if err := cb(&cl.env); err != nil {
			return err
		}
		if haltOnStop && cl.env.StopTraining {
			break
		}
	}
	return nil
}

// ShouldStop reports whether a callback asked training to stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
