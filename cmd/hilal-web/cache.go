package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
)

const (
	// scanCacheSize is how many encoded scans are kept in memory.
	scanCacheSize = 16

	// scanTimeout bounds a shared scan once no single request owns it.
	scanTimeout = 2 * time.Minute
)

// scanRequest names one cached scan: an evening and its encoding.
type scanRequest struct {
	Date time.Time

	// Workbook encodes the scan as .xlsx instead of GeoJSON
	Workbook bool

	// All keeps NOT_VISIBLE cells
	All bool
}

func (r scanRequest) key() string {
	format := "geojson"
	if r.Workbook {
		format = "xlsx"
	}
	return fmt.Sprintf("%s/%s/%t", r.Date.Format(time.DateOnly), format, r.All)
}

// scanResult is a finished scan, already encoded.
type scanResult struct {
	Body       []byte
	Completion scan.Completion
}

// scanCache runs at most one scan per request key at a time and keeps the
// most recently requested ones.
type scanCache struct {
	engine   *app.Engine
	recorder scan.Recorder
	timeout  time.Duration
	results  *lru.Cache[string, *scanResult]
	flights  singleflight.Group
}

func newScanCache(engine *app.Engine, recorder scan.Recorder, size int) (*scanCache, error) {
	results, err := lru.New[string, *scanResult](size)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create scan cache")
	}
	return &scanCache{engine: engine, recorder: recorder, timeout: scanTimeout, results: results}, nil
}

// Get returns the scan for req, running it if needed. hit reports whether
// the result came from the cache. A cancelled ctx abandons the wait but
// leaves a shared scan running for the other callers.
func (c *scanCache) Get(ctx context.Context, req scanRequest) (res *scanResult, hit bool, err error) {
	key := req.key()
	if cached, ok := c.results.Get(key); ok {
		return cached, true, nil
	}

	ch := c.flights.DoChan(key, func() (interface{}, error) {
		if cached, ok := c.results.Get(key); ok {
			return cached, nil
		}
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		res, err := c.run(runCtx, req)
		if err != nil {
			return nil, err
		}
		c.results.Add(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*scanResult), false, nil
	}
}

// run drives a full scan through a Queue host into the sink req asks for.
func (c *scanCache) run(ctx context.Context, req scanRequest) (*scanResult, error) {
	var (
		sink   render.Sink
		encode func() ([]byte, error)
		done   *scan.Completion
	)
	complete := func(comp scan.Completion) { done = &comp }

	if req.Workbook {
		wb := render.NewWorkbook()
		wb.IncludeNotVisible = req.All
		sink = wb
		complete = func(comp scan.Completion) {
			done = &comp
			wb.Complete(comp)
		}
		encode = func() ([]byte, error) {
			var buf bytes.Buffer
			if _, err := wb.WriteTo(&buf); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
	} else {
		geo := render.NewGeoJSON()
		geo.IncludeNotVisible = req.All
		sink = geo
		encode = func() ([]byte, error) { return json.Marshal(geo) }
	}

	sched, err := c.engine.NewScheduler(sink,
		scan.WithRecorder(c.recorder),
		scan.OnComplete(complete),
	)
	if err != nil {
		return nil, err
	}

	q := scan.NewQueue()
	sched.Run(q, req.Date)
	if err := q.Drain(ctx); err != nil {
		return nil, eris.Wrap(err, "scan interrupted")
	}
	if done == nil {
		return nil, eris.New("scan ended without completing")
	}

	body, err := encode()
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode scan")
	}
	zap.L().Info("scan cached",
		zap.String("key", req.key()),
		zap.String("run_id", done.RunID),
		zap.Int("cells", done.Cells),
		zap.Duration("elapsed", done.Elapsed))

	return &scanResult{Body: body, Completion: *done}, nil
}
