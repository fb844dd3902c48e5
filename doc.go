// Package analytics trains and serves a multiclass classifier that assesses
// the financial health of listed companies from their reported figures.
//
// A labeling dataset holds six numeric indicators (net income, net cash
// flow, ROE, ROA, EBITDA and cumulation), one categorical sector column and
// the investment assessment label. Training runs a fixed pipeline:
//
//  1. encode the label into a dense class index
//  2. impute missing numeric values with the training mean
//  3. min-max scale the numeric columns
//  4. one-hot encode the sector
//  5. fit a softmax gradient boosted tree ensemble
//
// The fitted pipeline is written as a single bundle that can be loaded
// later to score new records.
//
// # Quick Start
//
//	view, err := dataset.Load("data/labeling.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	train, test, err := dataset.TrainTestSplit(view, 0.2, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model, err := pipeline.Train(ctx, pipeline.DefaultConfig(), train)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := pipeline.Evaluate(ctx, model, test)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report)
//
// # Packages
//
//   - schema: column names and the record types
//   - dataset: streaming CSV loader and train/test split
//   - preprocessing: label encoder, imputer, scaler, one-hot encoder
//   - sklearn/lightgbm: histogram gradient boosting with a softmax objective
//   - metrics: confusion matrix and classification report
//   - pipeline: training, evaluation, prediction and bundle persistence
//   - orchestrator: the end-to-end training job and batch prediction
//   - config, tracking, report: YAML configuration, run history, charts
//
// The trainer binary in cmd/trainer wraps the orchestrator.
package analytics
