package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"warelay/internal/observability"
	"warelay/internal/providers/pinnacle"
)

type Vendor interface {
	SendText(ctx context.Context, mobile, text string) (pinnacle.SendResponse, int, []byte, error)
	SendTemplate(ctx context.Context, mobile, body, header, footer string) (pinnacle.SendResponse, int, []byte, error)
	SendMedia(ctx context.Context, mobile, mediaURL, kind, caption string) (pinnacle.SendResponse, int, []byte, error)
}

// GuardedSender wraps the raw vendor client with a rate limiter, a
// circuit breaker, and small retries on transient errors. It satisfies
// both the interactive gateway and the campaign sender contracts.
type GuardedSender struct {
	Vendor  Vendor
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

func (g *GuardedSender) SendText(ctx context.Context, mobile, text string) (string, error) {
	return g.send(ctx, func(ctx context.Context) (pinnacle.SendResponse, int, []byte, error) {
		return g.Vendor.SendText(ctx, mobile, text)
	})
}

func (g *GuardedSender) SendTemplate(ctx context.Context, mobile, body, header, footer string) (string, error) {
	return g.send(ctx, func(ctx context.Context) (pinnacle.SendResponse, int, []byte, error) {
		return g.Vendor.SendTemplate(ctx, mobile, body, header, footer)
	})
}

func (g *GuardedSender) SendMedia(ctx context.Context, mobile, mediaURL, kind, caption string) (string, error) {
	return g.send(ctx, func(ctx context.Context) (pinnacle.SendResponse, int, []byte, error) {
		return g.Vendor.SendMedia(ctx, mobile, mediaURL, kind, caption)
	})
}

func (g *GuardedSender) send(ctx context.Context, call func(context.Context) (pinnacle.SendResponse, int, []byte, error)) (string, error) {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		if g.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := g.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				// Could not acquire a token; transient, try again.
				observability.VendorSend.WithLabelValues("rate_limited_local", "0").Inc()
				lastErr = fmt.Errorf("vendor rate limiter: %w", err)
				time.Sleep(200 * time.Millisecond)
				continue
			}
		}

		resAny, err := g.executeWithBreaker(ctx, call)

		// Breaker open is provider protection, not a message failure.
		// Fail fast and let the caller redrive.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.VendorSend.WithLabelValues("cb_open", "0").Inc()
			return "", err
		}

		if err == nil {
			r := resAny.(sendResult)
			observability.VendorSend.WithLabelValues("ok", strconv.Itoa(r.httpStatus)).Inc()
			observability.VendorLatency.Observe(time.Since(start).Seconds())
			return r.resp.MessageID, nil
		}

		lastErr = err

		httpStatus := 0
		var vce vendorCallError
		if errors.As(err, &vce) {
			httpStatus = vce.httpStatus
		}
		observability.VendorSend.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()

		if !pinnacle.ShouldRetry(err, httpStatus) {
			return "", err
		}
		time.Sleep(pinnacle.Backoff(attempt))
	}

	return "", lastErr
}

func (g *GuardedSender) executeWithBreaker(ctx context.Context, call func(context.Context) (pinnacle.SendResponse, int, []byte, error)) (any, error) {
	exec := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
		defer cancel()

		resp, httpStatus, raw, callErr := call(reqCtx)
		if callErr != nil {
			return nil, vendorCallError{err: callErr, httpStatus: httpStatus, raw: raw}
		}
		return sendResult{resp: resp, httpStatus: httpStatus, raw: raw}, nil
	}

	if g.Breaker == nil {
		return exec()
	}
	return g.Breaker.Execute(exec)
}

type sendResult struct {
	resp       pinnacle.SendResponse
	httpStatus int
	raw        []byte
}

type vendorCallError struct {
	err        error
	httpStatus int
	raw        []byte
}

func (e vendorCallError) Error() string { return e.err.Error() }
func (e vendorCallError) Unwrap() error { return e.err }
