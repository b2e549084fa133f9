package distro

// DistributionError reports a distribution archive missing an expected
// file, or a manifest value that fails to parse.
type DistributionError struct {
	Message string
}

func (e *DistributionError) Error() string { return e.Message }

func (e *DistributionError) DistributionError() {}
