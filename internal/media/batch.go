package media

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"taskhub/pkg/logger"

	"go.uber.org/zap"
)

// UploadAll uploads every file concurrently and returns their URLs in input
// order. The batch is all-or-nothing: if any upload fails, the uploads that
// succeeded are deleted again before the error is returned, so a partial
// failure never leaks orphaned media.
func UploadAll(ctx context.Context, store Store, files []*multipart.FileHeader, folder string) ([]string, error) {
	for _, fh := range files {
		if err := ValidateImage(fh); err != nil {
			return nil, err
		}
	}

	type result struct {
		idx int
		url string
		err error
	}

	results := make(chan result, len(files))
	for i, fh := range files {
		go func(i int, fh *multipart.FileHeader) {
			url, err := uploadOne(ctx, store, fh, folder)
			results <- result{idx: i, url: url, err: err}
		}(i, fh)
	}

	urls := make([]string, len(files))
	var firstErr error
	for range files {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		urls[res.idx] = res.url
	}

	if firstErr != nil {
		// Compensating deletes for the subset that made it.
		for _, url := range urls {
			if url == "" {
				continue
			}
			if err := store.Delete(ctx, url); err != nil {
				logger.ErrorLogger.Error("Compensating media delete failed",
					zap.String("url", url), zap.Error(err))
			}
		}
		return nil, firstErr
	}

	return urls, nil
}

func uploadOne(ctx context.Context, store Store, fh *multipart.FileHeader, folder string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open uploaded file %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("cannot read uploaded file %s: %w", fh.Filename, err)
	}

	return store.Upload(ctx, data, fh.Filename, folder)
}

// DeleteAll removes every URL and returns the first failure. Deletes are
// issued sequentially so a delete-then-drop-record flow keeps the ordering
// guarantee of "media released before the reference disappears".
func DeleteAll(ctx context.Context, store Store, urls []string) error {
	var firstErr error
	for _, url := range urls {
		if err := store.Delete(ctx, url); err != nil {
			logger.ErrorLogger.Error("Media delete failed", zap.String("url", url), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
