package parser

import (
	"context"
	"time"

	"ragcorpus/internal/apperr"
)

// RunChain tries each parser in chain in order, wrapping every
// invocation with timeout (spec §4.2 step 2). A parser that times out
// or returns an error is treated identically: failed, try the next.
// If every parser in the chain fails, returns a KindIngestProcessing
// error wrapping the last parser's error (apperr.ErrParserFailed when
// the chain is empty).
func RunChain(ctx context.Context, chain []Parser, sourceBytes []byte, sourceName string, timeout time.Duration) (Result, Kind, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var lastErr error
	for _, p := range chain {
		res, err := runOne(ctx, p, sourceBytes, sourceName, timeout)
		if err == nil {
			return res, p.Kind(), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperr.ErrParserFailed
	}
	return Result{}, "", apperr.Wrap(apperr.KindIngestProcessing, "all parsers in fallback chain failed", lastErr)
}

func runOne(ctx context.Context, p Parser, sourceBytes []byte, sourceName string, timeout time.Duration) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type out struct {
		res Result
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := p.Parse(cctx, sourceBytes, sourceName)
		ch <- out{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-cctx.Done():
		return Result{}, cctx.Err()
	}
}
