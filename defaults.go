package outguard

// DefaultOptions returns the recommended set of options for production
// use. Currently this ensures every guarded operation carries a request
// ID; additional defaults may be added in future versions.
func DefaultOptions() []Option {
	return []Option{
		WithRequestIDs(),
	}
}
