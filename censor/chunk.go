package censor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SplitText splits text into consecutive chunks of at most limit characters
// (runes). Chunks do not overlap; only the final chunk may be shorter. Empty
// text yields no chunks.
func SplitText(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// CheckChunks evaluates text against a per-request character limit. Empty
// text is Pass without calling check. Oversized text is split with SplitText
// and every chunk is checked concurrently; the verdicts are aggregated by
// maximum risk and union of reasons. The first chunk error cancels the rest
// and is returned.
func CheckChunks(ctx context.Context, text string, limit int, check func(ctx context.Context, chunk string) (Verdict, error)) (Verdict, error) {
	chunks := SplitText(text, limit)
	switch len(chunks) {
	case 0:
		return PassVerdict(), nil
	case 1:
		return check(ctx, chunks[0])
	}

	verdicts := make([]Verdict, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			v, err := check(gctx, chunk)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Verdict{}, err
	}
	return Aggregate(verdicts...), nil
}
