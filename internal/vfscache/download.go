package vfscache

import (
	"context"
	"io"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/logging"
)

// downloadReadBufSize bounds how much of a single ranged-GET response body
// is read into memory before being handed off as one chunk.
const downloadReadBufSize = 256 * 1024

// runDownloadProducer is a single cooperative task per
// Streaming state or per cached file. It maintains pos starting at 0 and,
// while pos < fileSize, issues a ranged GET starting at pos. A response that
// ends cleanly after delivering bytes is followed at once by a new GET from
// the advanced pos and resets the retry budget. Transport errors, read
// errors, and responses that deliver no bytes count against a budget of
// cfg.MaxRetry retries, each preceded by cfg.RetryDelay; on exhaustion the
// producer terminates silently and closes chunks, so downstream consumers
// observe a short read as UnexpectedEndOfDownload.
func runDownloadProducer(ctx context.Context, url string, fileSize uint64, client HTTPClient, chunks chan<- []byte, cfg DownloadConfig) {
	defer close(chunks)

	var pos uint64
	attempt := 0
	for pos < fileSize {
		body, err := client.Open(ctx, url, pos)
		if err != nil {
			if !waitRetry(ctx, &attempt, cfg) {
				return
			}
			continue
		}

		newPos, readErr := streamBody(ctx, body, chunks, pos, fileSize)
		body.Close()
		progressed := newPos > pos
		pos = newPos

		if readErr != nil || !progressed {
			if !waitRetry(ctx, &attempt, cfg) {
				return
			}
			continue
		}
		attempt = 0
	}
}

// waitRetry increments attempt and sleeps cfg.RetryDelay, reporting false
// once the retry budget (cfg.MaxRetry) is exhausted or the context is done.
func waitRetry(ctx context.Context, attempt *int, cfg DownloadConfig) bool {
	*attempt++
	if *attempt > cfg.MaxRetry {
		logging.Warn().Int("attempts", *attempt-1).Msg("download producer exhausted retry budget, terminating")
		return false
	}
	select {
	case <-time.After(cfg.RetryDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

// streamBody reads body in downloadReadBufSize-sized pieces, pushing each to
// chunks and advancing pos, until body is exhausted (clean EOF) or pos
// reaches fileSize. It clamps the final chunk so pos never exceeds fileSize.
func streamBody(ctx context.Context, body io.Reader, chunks chan<- []byte, pos, fileSize uint64) (uint64, error) {
	buf := make([]byte, downloadReadBufSize)
	for pos < fileSize {
		n, err := body.Read(buf)
		if n > 0 {
			take := uint64(n)
			if pos+take > fileSize {
				take = fileSize - pos
			}
			chunk := make([]byte, take)
			copy(chunk, buf[:take])

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return pos, ctx.Err()
			}
			pos += take
		}
		if err != nil {
			if err == io.EOF {
				return pos, nil
			}
			return pos, err
		}
	}
	return pos, nil
}
