// Package metrics evaluates multiclass predictions: a confusion matrix with
// rows indexed by the true class and columns by the predicted class, the
// per-class precision and recall derived from it, micro and macro accuracy,
// and multiclass log loss.
package metrics
