package predict

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ResultCache stores encoded results. Get reports a miss with ok=false and a
// nil error.
type ResultCache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedPredictor serves repeated symptom sets from a ResultCache. Only
// successful results are cached; predictions are deterministic for a given
// model version, so a hit is identical to a fresh run.
//
// Concurrent misses for the same key share one pipeline run. That run is
// detached from every caller's cancellation and bounded by timeout instead;
// each caller still stops waiting when its own context ends.
type CachedPredictor struct {
	next    Predictor
	cache   ResultCache
	ttl     time.Duration
	version string
	timeout time.Duration
	logger  *logrus.Logger
	group   singleflight.Group
}

func NewCachedPredictor(next Predictor, cache ResultCache, ttl, timeout time.Duration, version string, logger *logrus.Logger) *CachedPredictor {
	return &CachedPredictor{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
		version: version,
		logger:  logger,
	}
}

func (c *CachedPredictor) Predict(ctx context.Context, symptoms []string) (*Result, error) {
	key := CacheKey(c.version, symptoms)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("result cache read failed")
	}
	if ok {
		var res Result
		if err := json.Unmarshal(raw, &res); err == nil {
			return &res, nil
		}
		c.logger.WithField("key", key).Warn("discarding undecodable cache entry")
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := c.sharedContext(ctx)
		defer cancel()

		res, err := c.next.Predict(shared, symptoms)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := c.cache.Set(shared, key, data, c.ttl); err != nil {
				c.logger.WithError(err).Warn("result cache write failed")
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		return &res, nil
	}
}

func (c *CachedPredictor) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		return context.WithTimeout(detached, c.timeout)
	}
	return context.WithCancel(detached)
}

// CacheKey identifies a symptom set independent of order and duplicates.
func CacheKey(version string, symptoms []string) string {
	uniq := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		uniq[s] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for s := range uniq {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return "predict:" + version + ":" + hex.EncodeToString(sum[:])
}
