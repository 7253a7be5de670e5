package encoder

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/and161185/face-keeper/internal/model"
)

// Pool runs encoder calls on background goroutines with at most n in flight.
//
// A started inference always runs to completion: if the caller's context ends
// first, Detect returns ctx.Err() and the slot is released once the encoder
// finishes.
type Pool struct {
	enc    FaceEncoder
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewPool wraps enc with a concurrency limit of workers.
func NewPool(enc FaceEncoder, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		enc:    enc,
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger.Named("encoder_pool"),
	}
}

type detectResult struct {
	dets []model.Detection
	err  error
}

// Detect implements FaceEncoder.
func (p *Pool) Detect(ctx context.Context, image []byte) ([]model.Detection, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan detectResult, 1)
	go func() {
		defer p.sem.Release(1)
		start := time.Now()
		dets, err := p.enc.Detect(context.WithoutCancel(ctx), image)
		p.logger.Debug("inference finished",
			zap.Int("faces", len(dets)),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		done <- detectResult{dets: dets, err: err}
	}()

	select {
	case r := <-done:
		return r.dets, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
