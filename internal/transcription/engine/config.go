package engine

// Precision is the numeric precision used for model inference.
type Precision string

const (
	PrecisionFP16 Precision = "fp16"
	PrecisionInt8 Precision = "int8"
)

// InferenceConfig tunes a single transcription run.
type InferenceConfig struct {
	BatchSize int       `json:"batch_size"`
	Precision Precision `json:"precision"`
	BeamSize  int       `json:"beam_size"`
}

// Size tiers, in megabytes.
const (
	largeFileMB  = 100
	mediumFileMB = 50
)

// SelectConfig picks inference settings from the input file size. Larger
// files trade accuracy for speed.
func SelectConfig(fileSizeMB float64) InferenceConfig {
	switch {
	case fileSizeMB > largeFileMB:
		return InferenceConfig{BatchSize: 8, Precision: PrecisionInt8, BeamSize: 3}
	case fileSizeMB > mediumFileMB:
		return InferenceConfig{BatchSize: 12, Precision: PrecisionFP16, BeamSize: 4}
	default:
		return DefaultConfig()
	}
}

// DefaultConfig is the configuration used for small files.
func DefaultConfig() InferenceConfig {
	return InferenceConfig{BatchSize: 16, Precision: PrecisionFP16, BeamSize: 5}
}

// FileSizeMB converts a byte count to megabytes.
func FileSizeMB(size int64) float64 {
	return float64(size) / (1024 * 1024)
}
