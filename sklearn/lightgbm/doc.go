// Package lightgbm is a pure Go gradient-boosted decision tree learner for
// multiclass classification in the style of LightGBM: histogram binning,
// leaf-wise tree growth bounded by a leaf count, and a softmax objective
// with one tree per class per boosting iteration.
//
// # Training
//
//	params := lightgbm.DefaultParams()
//	params.NumClass = 3
//	trainer := lightgbm.NewTrainer(params).WithCallbacks(lightgbm.LogEvaluation(10))
//	if err := trainer.Fit(ctx, X, y); err != nil {
//	    return err
//	}
//	model := trainer.GetModel()
//
// # Prediction
//
//	proba, err := lightgbm.NewPredictor(model).PredictProba(Xtest)
//
// Class trees of one iteration are independent given the scores of the
// previous iteration, so they are grown concurrently. Results do not depend
// on the number of threads.
package lightgbm
