package provider

import (
	"context"
	"sync"

	fr "github.com/captain-yun7/facefalcon-sub000/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FindSimilarFaces vergleicht ein Quellbild mit mehreren Zielbildern und liefert eine absteigend
// sortierte Rangliste. Bei Gleichstand entscheidet der ursprüngliche Index.
func (c *HybridClient) FindSimilarFaces(ctx context.Context, source []byte, targets [][]byte) fr.Result[[]fr.SimilarFace] {
	if len(targets) == 0 {
		return fr.Ok([]fr.SimilarFace{})
	}

	isBatch := len(targets) > 1
	res, provider, err := withBackend(ctx, c, fr.OpFindSimilarFaces, isBatch,
		func(ctx context.Context, b fr.Backend) ([]fr.SimilarFace, error) {
			// Die Cloud vergleicht den ganzen Batch selbst
			if bc, ok := b.(fr.BatchComparer); ok && b.Name() == fr.ProviderCloud {
				return bc.FindSimilarFaces(ctx, source, targets)
			}
			return c.comparePairwise(ctx, b, source, targets)
		})
	if err != nil {
		log.WithFields(logFields).Errorf("FindSimilarFaces failed: %v", err)
		return fr.Fail[[]fr.SimilarFace](err)
	}

	log.WithFields(logFields).Debugf("FindSimilarFaces served by %s: %d of %d targets compared", provider, len(res), len(targets))
	return fr.Ok(res)
}

// comparePairwise vergleicht jedes Ziel einzeln mit höchstens BatchConcurrency parallelen Aufrufen.
// Beim lokalen Dienst gilt das Timeout je Vergleich, nicht für den ganzen Batch.
// Fehlgeschlagene Ziele werden ausgelassen; schlagen alle fehl, wird der letzte Fehler zurückgegeben.
func (c *HybridClient) comparePairwise(ctx context.Context, b fr.Backend, source []byte, targets [][]byte) ([]fr.SimilarFace, error) {
	slots := make([]*fr.SimilarFace, len(targets))

	var (
		mu      sync.Mutex
		lastErr error
	)

	cfg := c.cfg.Load()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchConcurrency)

	for i, target := range targets {
		g.Go(func() error {
			callCtx := gctx
			if b.Name() == fr.ProviderLocal {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, cfg.LocalTimeout())
				defer cancel()
			}
			res, err := b.CompareFaces(callCtx, source, target, 0)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithFields(logFields).Warnf("Comparison with target %d failed: %v", i, err)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			slots[i] = &fr.SimilarFace{
				ImageIndex:  i,
				Similarity:  res.Similarity,
				FaceMatches: res.FaceMatches,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]fr.SimilarFace, 0, len(targets))
	for _, s := range slots {
		if s != nil {
			results = append(results, *s)
		}
	}
	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}

	fr.RankSimilarFaces(results)
	return results, nil
}
