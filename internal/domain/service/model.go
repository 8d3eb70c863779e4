package service

// Model is an opaque pre-trained predictor. It is loaded once at process
// start and immutable for the process lifetime.
type Model interface {
	// Name identifies the model in logs and errors.
	Name() string
	// FeatureNames returns the exact ordered feature list the model was
	// trained with.
	FeatureNames() []string
	// Predict scores one feature vector, ordered per FeatureNames. The
	// meaning of the score depends on the objective: regression models
	// return the raw trained-space value, classifiers a calibrated
	// probability of the positive class.
	Predict(features []float64) (float64, error)
}
