package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model to use; the tiny model keeps memory low.
	Model string
	// Language is an optional ISO hint; empty lets WhisperX detect it.
	Language string
	// UVXBinary launches WhisperX in an isolated environment.
	UVXBinary string
	// ComputeType is the CPU inference precision.
	ComputeType string
}

// WhisperX configuration constants.
const (
	DefaultModel       = "tiny"
	DefaultComputeType = "float32"
	PypiIndexURL       = "https://pypi.org/simple"
	BatchSize          = "4"
	OutputFormat       = "json"
	CPUDevice          = "cpu"
	UVXCommand         = "uvx"
)
