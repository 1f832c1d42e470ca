package capability

// Device describes one GPU. Not every probing path exposes memory or
// compute capability, so both are optional.
type Device struct {
	Name              string
	MemoryGB          *float64
	ComputeCapability *string
}
