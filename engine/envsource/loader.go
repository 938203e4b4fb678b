package envsource

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	device renderer.Device
	size   uint32

	cubemaps map[string]*Cubemap
	textures map[string]resource.Texture

	backends map[string]loaderBackend
}

// Loader loads environment assets and caches them by path. The file format is
// selected by extension.
type Loader interface {
	// Load reads an environment file and caches the result. A cached cubemap is
	// returned without touching the file.
	//
	// Parameters:
	//   - path: an .exr, .png, .jpg, .jpeg, .bmp, .tif, .tiff or .webp file
	//
	// Returns:
	//   - *Cubemap: the cubemap
	//   - error: error if loading fails
	Load(path string) (*Cubemap, error)

	// LoadTexture loads path and uploads it to the loader's device. The texture is
	// cached by path and owned by the loader.
	//
	// Parameters:
	//   - path: the file to load
	//
	// Returns:
	//   - resource.Texture: the uploaded cubemap
	//   - error: error if loading or uploading fails
	LoadTexture(path string) (resource.Texture, error)

	// Get retrieves a cached cubemap. Returns nil if not found.
	//
	// Parameters:
	//   - key: the path or key the cubemap was cached under
	//
	// Returns:
	//   - *Cubemap: the cubemap or nil
	Get(key string) *Cubemap

	// Cubemaps returns a copy of the cache.
	//
	// Returns:
	//   - map[string]*Cubemap: every cached cubemap keyed by path
	Cubemaps() map[string]*Cubemap

	// Forget drops path from the caches and releases its texture.
	//
	// Parameters:
	//   - key: the path or key to drop
	Forget(key string)

	// Release releases every uploaded texture.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a Loader.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		cubemaps: make(map[string]*Cubemap),
		textures: make(map[string]resource.Texture),
		backends: map[string]loaderBackend{
			".exr":  exrLoaderBackend{},
			".png":  imageLoaderBackend{},
			".jpg":  imageLoaderBackend{},
			".jpeg": imageLoaderBackend{},
			".bmp":  imageLoaderBackend{},
			".tif":  imageLoaderBackend{},
			".tiff": imageLoaderBackend{},
			".webp": imageLoaderBackend{},
			".toml": skyLoaderBackend{},
			".yaml": skyLoaderBackend{},
			".yml":  skyLoaderBackend{},
		},
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (*Cubemap, error) {
	l.mu.RLock()
	if cached, ok := l.cubemaps[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	c, err := backend.Load(path, l.size)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	c.Label = filepath.Base(path)

	l.mu.Lock()
	l.cubemaps[path] = c
	l.mu.Unlock()
	common.Logger().Info("environment loaded", slog.String("path", path), slog.Uint64("size", uint64(c.Size)))
	return c, nil
}

func (l *loader) LoadTexture(path string) (resource.Texture, error) {
	if l.device == nil {
		return nil, fmt.Errorf("envsource: cannot upload %s without a device", path)
	}
	l.mu.RLock()
	if tex, ok := l.textures[path]; ok {
		l.mu.RUnlock()
		return tex, nil
	}
	l.mu.RUnlock()

	c, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	tex, err := c.Upload(l.device)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.textures[path]; ok {
		tex.Release()
		return existing, nil
	}
	l.textures[path] = tex
	return tex, nil
}

func (l *loader) Get(key string) *Cubemap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cubemaps[key]
}

func (l *loader) Cubemaps() map[string]*Cubemap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.cubemaps)
}

func (l *loader) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tex, ok := l.textures[key]; ok {
		tex.Release()
	}
	delete(l.textures, key)
	delete(l.cubemaps, key)
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tex := range l.textures {
		tex.Release()
	}
	clear(l.textures)
}

// resolveBackend selects a loader backend based on the file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if backend, ok := l.backends[ext]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("unsupported environment format %q", ext)
}
