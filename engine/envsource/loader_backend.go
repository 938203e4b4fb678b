package envsource

// loaderBackend reads one family of file formats into a cubemap.
type loaderBackend interface {
	// Load reads the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//   - size: the face size, zero derives it from the file
	//
	// Returns:
	//   - *Cubemap: the resampled cubemap
	//   - error: error if loading fails
	Load(path string, size uint32) (*Cubemap, error)
}
