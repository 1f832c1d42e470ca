// Package capability holds the normalized outcome of detecting one piece of
// the GPU computing stack.
package capability

// Capability names used in logs and reports.
const (
	Driver     = "driver"
	Toolkit    = "cuda_toolkit"
	CuDNN      = "cudnn"
	TensorFlow = "tensorflow"
	PyTorch    = "pytorch"
	Python     = "python"
	Pip        = "pip"
)

// Fact is either Detected(version) or NotDetected. It is never partially
// populated and is compared only by string equality.
type Fact struct {
	version  string
	detected bool
}

// NotDetected is the zero Fact.
var NotDetected = Fact{}

// Detected returns a fact carrying the normalized version token.
func Detected(version string) Fact {
	return Fact{version: version, detected: true}
}

// FromPtr converts an optional token into a Fact. nil means NotDetected.
func FromPtr(version *string) Fact {
	if version == nil {
		return NotDetected
	}
	return Detected(*version)
}

// Version returns the token and whether the capability was detected.
func (f Fact) Version() (string, bool) {
	return f.version, f.detected
}

// IsDetected reports whether a version token is present.
func (f Fact) IsDetected() bool {
	return f.detected
}

// Ptr returns the token as an optional value, nil when not detected.
func (f Fact) Ptr() *string {
	if !f.detected {
		return nil
	}
	v := f.version
	return &v
}

// String renders the token, or "not detected".
func (f Fact) String() string {
	if !f.detected {
		return "not detected"
	}
	return f.version
}
