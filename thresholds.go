package ecgnet

// Threshold fitting: after training, the sigmoid outputs on the training set
// are swept per class for the cutoff that maximizes F1. Classes with no
// positive examples keep DefaultThreshold.

// DefaultThreshold is used for classes the fit cannot improve on.
const DefaultThreshold = 0.5

// Grid swept per class, inclusive on both ends.
const (
	thresholdMin  = 0.05
	thresholdMax  = 0.95
	thresholdStep = 0.05
)

// FitThresholds picks one decision threshold per class. probs and truth are
// flat [numExamples, numClasses]; truth is multi-hot.
func FitThresholds(probs, truth []float32, numClasses int) []float32 {
	thresholds := make([]float32, numClasses)
	numExamples := 0
	if numClasses > 0 {
		numExamples = len(probs) / numClasses
	}
	for class := range thresholds {
		thresholds[class] = fitClassThreshold(probs, truth, class, numClasses, numExamples)
	}
	return thresholds
}

func fitClassThreshold(probs, truth []float32, class, numClasses, numExamples int) float32 {
	best, bestF1 := float32(DefaultThreshold), -1.0
	for t := thresholdMin; t <= thresholdMax+thresholdStep/2; t += thresholdStep {
		var tp, fp, fn int
		for i := range numExamples {
			predicted := probs[i*numClasses+class] >= float32(t)
			actual := truth[i*numClasses+class] > 0.5
			switch {
			case predicted && actual:
				tp++
			case predicted && !actual:
				fp++
			case !predicted && actual:
				fn++
			}
		}
		if tp == 0 {
			continue
		}
		f1 := 2 * float64(tp) / float64(2*tp+fp+fn)
		if f1 > bestF1 {
			bestF1 = f1
			best = float32(t)
		}
	}
	return best
}
