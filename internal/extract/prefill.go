package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/runnerr0/chargebook/internal/log"
	"github.com/runnerr0/chargebook/internal/storage"
)

// Prefiller fills drafts from images. Concurrent requests for the same image
// share one backend call. Failed calls are not retried.
type Prefiller struct {
	client Client
	group  singleflight.Group
	log    *log.Logger
}

func NewPrefiller(client Client, logger *log.Logger) *Prefiller {
	if logger == nil {
		logger = log.Discard()
	}
	return &Prefiller{client: client, log: logger.WithComponent(log.ComponentExtract)}
}

// Extract runs the backend once per distinct in-flight image.
func (p *Prefiller) Extract(ctx context.Context, req Request) (Result, error) {
	v, err, shared := p.group.Do(requestKey(req), func() (any, error) {
		return p.client.Extract(ctx, req)
	})
	if shared {
		p.log.DebugContext(ctx, "Joined in-flight extraction", log.FieldBytes, len(req.Image))
	}
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			err = &Error{Op: "request", Err: err}
		}
		return Result{}, err
	}
	return v.(Result), nil
}

// Prefill merges the image's values into d and also returns what was
// recognized, so the caller can tell which fields still need the user. On
// failure d is returned as given together with the error.
func (p *Prefiller) Prefill(ctx context.Context, req Request, d storage.Draft) (storage.Draft, Result, error) {
	res, err := p.Extract(ctx, req)
	if err != nil {
		return d, Result{}, err
	}
	return res.Apply(d), res, nil
}

func requestKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.MIMEType))
	h.Write([]byte{0})
	h.Write(req.Image)
	return hex.EncodeToString(h.Sum(nil))
}
