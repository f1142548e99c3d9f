// Package marketdata retrieves the daily ETF snapshot.
package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/aristath/sipcopy/internal/modules/allocation"
	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
)

const (
	userAgent       = "Mozilla/5.0"
	maxSnapshotSize = 16 << 20
	archiveLayout   = "2006-01-02"
)

// Fetcher returns the raw snapshot CSV
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Source() string
}

// NSEOptions configure the exchange download
type NSEOptions struct {
	URL        string
	Referer    string
	Timeout    time.Duration
	ArchiveDir string         // raw downloads are kept here, "" disables archiving
	Location   *time.Location // names the archive file by market date
	MaxSize    int64          // larger responses are rejected, defaults to 16 MiB
}

// NSEFetcher downloads the snapshot from the exchange website.
// The download endpoint only answers sessions that first visited the referer page.
type NSEFetcher struct {
	opts   NSEOptions
	client *http.Client
	now    func() time.Time
	log    zerolog.Logger
}

// NewNSEFetcher creates an exchange fetcher with its own cookie jar
func NewNSEFetcher(opts NSEOptions, log zerolog.Logger) (*NSEFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = maxSnapshotSize
	}
	return &NSEFetcher{
		opts:   opts,
		client: &http.Client{Jar: jar, Timeout: opts.Timeout},
		now:    time.Now,
		log:    log.With().Str("client", "nse").Logger(),
	}, nil
}

// Source describes where the snapshot comes from
func (f *NSEFetcher) Source() string {
	return f.opts.URL
}

// Fetch primes the session cookies and downloads the snapshot
func (f *NSEFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.opts.Referer != "" {
		if _, err := f.get(ctx, f.opts.Referer, ""); err != nil {
			f.log.Warn().Err(err).Msg("Failed to prime session cookies")
		}
	}

	body, err := f.get(ctx, f.opts.URL, f.opts.Referer)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty snapshot from %s", f.opts.URL)
	}

	if f.opts.ArchiveDir != "" {
		path, err := f.archive(body)
		if err != nil {
			f.log.Warn().Err(err).Msg("Failed to archive snapshot")
		} else {
			f.log.Debug().Str("path", path).Msg("Snapshot archived")
		}
	}
	return body, nil
}

func (f *NSEFetcher) get(ctx context.Context, url, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(body)) > f.opts.MaxSize {
		return nil, fmt.Errorf("GET %s: response exceeds %d bytes", url, f.opts.MaxSize)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, utils.Truncate(string(body), 200))
	}
	return body, nil
}

// ArchiveName is the file name a snapshot downloaded on day is kept under
func ArchiveName(day time.Time) string {
	return "ETF_Data_" + day.Format(archiveLayout) + ".csv"
}

func (f *NSEFetcher) archive(body []byte) (string, error) {
	if err := os.MkdirAll(f.opts.ArchiveDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(f.opts.ArchiveDir, ArchiveName(f.now().In(f.opts.Location)))
	return path, os.WriteFile(path, body, 0644)
}

// FileFetcher reads a snapshot previously saved to disk
type FileFetcher struct {
	Path string
}

// Source describes where the snapshot comes from
func (f FileFetcher) Source() string {
	return f.Path
}

// Fetch reads the file
func (f FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return body, nil
}

// RetryPolicy bounds snapshot retrieval
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Load fetches and parses the snapshot, retrying both steps with a fixed delay.
// Exhausting the attempts yields a *domain.DataRetrievalError.
func Load(ctx context.Context, f Fetcher, policy RetryPolicy, log zerolog.Logger) ([]allocation.Instrument, error) {
	log = log.With().Str("service", "marketdata").Str("source", f.Source()).Logger()
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var instruments []allocation.Instrument
	err := utils.RetryFixed(ctx, policy.Attempts, policy.Delay, func(attempt int) error {
		body, err := f.Fetch(ctx)
		if err == nil {
			instruments, err = allocation.ParseSnapshot(bytes.NewReader(body))
		}
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", policy.Attempts).
				Msg("Snapshot retrieval failed")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, &domain.DataRetrievalError{Attempts: policy.Attempts, Err: err}
	}

	log.Info().Int("instruments", len(instruments)).Msg("Snapshot loaded")
	return instruments, nil
}
