package ibl

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
)

// Stats reports the size of the per-source caches.
type Stats struct {
	Resamples        int
	Prefilters       int
	Harmonics        int
	ReadbacksPending int
	ReadbackAttempts int
	ReadbackFailures int
	Rejected         int
}

type resampleEntry struct {
	node ResampleNode
	meta ResampleMetadata
}

// shDerivation is a completed or in-flight SH readback of one source.
type shDerivation struct {
	attempt int
	level   uint32
	size    uint32
	faces   [common.CubeFaceCount]*common.Future[[]byte]
	sh      *environment.SH
}

// sourceCache maps source identity to its jobs. Every method expects mu held.
type sourceCache struct {
	mu sync.Mutex

	dev   renderer.Device
	cfg   Config
	cache shader.Cache

	resamples  map[resource.Texture]*resampleEntry
	prefilters map[resource.Texture]PrefilterNode
	harmonics  map[resource.Texture]*shDerivation
	rejected   map[resource.Texture]error

	attempts int
	failures int
}

func newSourceCache(dev renderer.Device, cfg Config, cache shader.Cache) *sourceCache {
	return &sourceCache{
		dev:        dev,
		cfg:        cfg,
		cache:      cache,
		resamples:  make(map[resource.Texture]*resampleEntry),
		prefilters: make(map[resource.Texture]PrefilterNode),
		harmonics:  make(map[resource.Texture]*shDerivation),
		rejected:   make(map[resource.Texture]error),
	}
}

// jobs returns the resample and prefilter jobs of source, creating them on a miss.
// A source that can never be prefiltered is remembered and its error is returned
// once. Later calls return nil jobs and no error until the source is evicted.
func (c *sourceCache) jobs(source resource.Texture) (*resampleEntry, PrefilterNode, error) {
	if res, ok := c.resamples[source]; ok {
		return res, c.prefilters[source], nil
	}
	if _, ok := c.rejected[source]; ok {
		return nil, nil, nil
	}

	opts := []NodeBuilderOption{WithConfig(c.cfg), WithShaderCache(c.cache)}
	node, err := NewResampleNode(source, opts...)
	if err != nil {
		return nil, nil, c.reject(source, err)
	}
	if node.Metadata().Flags.Depth {
		node.Destroy()
		return nil, nil, c.reject(source, ErrDepthSource)
	}
	if err := node.Reconfigure(c.dev); err != nil {
		node.Destroy()
		return nil, nil, err
	}
	pre, err := NewPrefilterNode(node.Output(), opts...)
	if err != nil {
		node.Destroy()
		return nil, nil, c.reject(source, err)
	}
	if err := pre.Reconfigure(c.dev); err != nil {
		node.Destroy()
		pre.Destroy()
		return nil, nil, err
	}

	res := &resampleEntry{node: node, meta: node.Metadata()}
	c.resamples[source] = res
	c.prefilters[source] = pre
	common.Logger().Debug("environment source registered",
		slog.String("source", source.Label()),
		slog.Uint64("levels", uint64(pre.MipLevelCount())),
	)
	return res, pre, nil
}

func (c *sourceCache) reject(source resource.Texture, err error) error {
	c.rejected[source] = err
	common.Logger().Warn("environment source rejected", slog.String("source", source.Label()), slog.Any("err", err))
	return err
}

// shLevel returns the level of the resampled cube whose faces are closest to, and
// not smaller than, SHSampleSize.
func (c *sourceCache) shLevel(meta ResampleMetadata) uint32 {
	target := common.Coalesce(c.cfg.SHSampleSize, DefaultConfig().SHSampleSize)
	level := uint32(0)
	for level+1 < meta.MipLevelCount && common.MipSize(meta.Size, level+1) >= target {
		level++
	}
	return level
}

// harmonicsFor drives the SH derivation of source one step.
//
// Returns:
//   - *environment.SH: the coefficients once derived, nil otherwise
func (c *sourceCache) harmonicsFor(enc renderer.CommandEncoder, source resource.Texture, res *resampleEntry) *environment.SH {
	d := c.harmonics[source]
	if d != nil && d.sh != nil {
		return d.sh
	}

	if d == nil {
		c.attempts++
		level := c.shLevel(res.meta)
		d = &shDerivation{attempt: c.attempts, level: level, size: common.MipSize(res.meta.Size, level)}
		out := res.node.Output()
		for face := range d.faces {
			d.faces[face] = enc.ReadTexture(out, uint32(face), level)
		}
		c.harmonics[source] = d
		common.Logger().Debug("sh readback issued",
			slog.String("source", source.Label()),
			slog.Uint64("level", uint64(level)),
			slog.Int("attempt", d.attempt),
		)
		return nil
	}

	var faces [common.CubeFaceCount][]float32
	for face, f := range d.faces {
		data, err := f.Poll()
		if errors.Is(err, common.ErrPending) {
			return nil
		}
		if err == nil {
			faces[face], err = DecodeHalfRGBA(data, d.size)
		}
		if err != nil {
			c.fail(source, &ReadbackError{Source: source.Label(), Face: uint32(face), Attempt: d.attempt, Err: err})
			return nil
		}
	}
	sh, err := ProjectSH(faces, d.size)
	if err != nil {
		c.fail(source, &ReadbackError{Source: source.Label(), Attempt: d.attempt, Err: err})
		return nil
	}

	d.sh = &sh
	d.faces = [common.CubeFaceCount]*common.Future[[]byte]{}
	common.Logger().Info("sh derived", slog.String("source", source.Label()), slog.Int("attempt", d.attempt))
	return d.sh
}

func (c *sourceCache) fail(source resource.Texture, err error) {
	c.failures++
	delete(c.harmonics, source)
	common.Logger().Warn("sh readback failed, retrying next tick", slog.String("source", source.Label()), slog.Any("err", err))
}

func (c *sourceCache) evict(source resource.Texture) bool {
	res, ok := c.resamples[source]
	if ok {
		c.prefilters[source].Destroy()
		res.node.Destroy()
	}
	delete(c.resamples, source)
	delete(c.prefilters, source)
	if _, had := c.harmonics[source]; had {
		ok = true
	}
	delete(c.harmonics, source)
	if _, had := c.rejected[source]; had {
		ok = true
	}
	delete(c.rejected, source)
	return ok
}

func (c *sourceCache) stats() Stats {
	s := Stats{
		Resamples:        len(c.resamples),
		Prefilters:       len(c.prefilters),
		ReadbackAttempts: c.attempts,
		ReadbackFailures: c.failures,
		Rejected:         len(c.rejected),
	}
	for _, d := range c.harmonics {
		if d.sh != nil {
			s.Harmonics++
		} else {
			s.ReadbacksPending++
		}
	}
	return s
}

func (c *sourceCache) destroy() {
	for source := range c.resamples {
		c.evict(source)
	}
	clear(c.harmonics)
	clear(c.rejected)
}
