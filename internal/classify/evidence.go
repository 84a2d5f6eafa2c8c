package classify

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/hashutil"
	"github.com/dataset-commons/dc-pipeline/internal/ledger"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
)

// EvidenceMaxBytes is the default response cap (20 MiB).
const EvidenceMaxBytes int64 = 20 * 1024 * 1024

var redactedHeaders = map[string]bool{
	"cookie":        true,
	"authorization": true,
	"set-cookie":    true,
}

// FetchConfig controls evidence fetching behavior.
type FetchConfig struct {
	NoFetch              bool
	ExtraHeaders         map[string]string
	AllowPrivateHosts    bool
	Allowlist            *netguard.Allowlist
	MaxAttempts          int
	BackoffBase          float64
	BackoffMax           time.Duration
	HTTPClient           *http.Client
}

// DefaultFetchConfig returns the default retry/backoff settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxAttempts: 4,
		BackoffBase: 2.0,
		BackoffMax:  30 * time.Second,
		HTTPClient: &http.Client{
			Timeout: 0, // per-request deadline applied via context
		},
	}
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == 429 || code == 408
}

// FetchEvidence performs one HTTP GET with retry/backoff/SSRF-checked
// redirects and computes both hashes. In offline mode manifestDir is
// where the stored license_evidence.json is read from; after a
// successful fetch the raw body and the extracted text are written there
// as license_evidence.bin and license_evidence.txt. The snapshot's own
// license_evidence.json is left to the caller.
func FetchEvidence(ctx context.Context, cfg FetchConfig, target *model.Target, manifestDir string) (*model.EvidenceSnapshot, error) {
	url := target.LicenseEvidence.URL

	if cfg.NoFetch {
		return loadOfflineSnapshot(manifestDir, url)
	}
	if url == "" {
		return nil, nil
	}

	resolver := netguard.StdResolver{}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	client = &http.Client{
		Timeout: client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if err := netguard.CheckURL(req.Context(), resolver, req.URL.String(), cfg.Allowlist, cfg.AllowPrivateHosts); err != nil {
				return err
			}
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 2.0
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		snap, err := fetchOnce(ctx, client, resolver, cfg, url, manifestDir)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		var transient bool
		var herr *httpStatusError
		if errors.As(err, &herr) {
			transient = isTransientStatus(herr.Status)
		} else {
			transient = true // connect/read/timeout errors are transient
		}
		if !transient || attempt == maxAttempts-1 {
			break
		}
		sleep := time.Duration(math.Min(math.Pow(backoffBase, float64(attempt)), backoffMax.Seconds())) * time.Second
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &model.EvidenceSnapshot{
		URL:          url,
		FetchedAtUTC: nowUTC(),
		Error:        lastErr.Error(),
	}, nil // evidence fetch errors never fail the run
}

type httpStatusError struct {
	Status int
}

func (e *httpStatusError) Error() string { return "non-2xx http status" }

func fetchOnce(ctx context.Context, client *http.Client, resolver netguard.Resolver, cfg FetchConfig, url string, manifestDir string) (*model.EvidenceSnapshot, error) {
	if err := netguard.CheckURL(ctx, resolver, url, cfg.Allowlist, cfg.AllowPrivateHosts); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{Status: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, EvidenceMaxBytes)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}

	rawSHA := hashutil.RawSHA256(raw)
	text := string(raw)
	extractionFailed := !isLikelyText(resp.Header.Get("Content-Type"), raw)

	var normalizedSHA, fallback, normalizedText string
	var extracted bool
	if extractionFailed {
		normalizedSHA = rawSHA
		fallback = "raw_bytes"
	} else {
		normalizedText = hashutil.NormalizeEvidenceText(text)
		normalizedSHA = hashutil.ContentSHA256(normalizedText)
		extracted = true
	}

	if manifestDir != "" {
		if err := ledger.WriteAtomicBytes(filepath.Join(manifestDir, "license_evidence.bin"), raw); err != nil {
			return nil, err
		}
		extractedText := normalizedText
		if !extracted {
			extractedText = text
		}
		if err := ledger.WriteAtomicBytes(filepath.Join(manifestDir, "license_evidence.txt"), []byte(extractedText)); err != nil {
			return nil, err
		}
	}

	headers := map[string]string{}
	for k := range req.Header {
		lk := strings.ToLower(k)
		if redactedHeaders[lk] {
			headers[k] = "[REDACTED]"
		} else {
			headers[k] = req.Header.Get(k)
		}
	}

	return &model.EvidenceSnapshot{
		URL:                    url,
		Status:                 resp.StatusCode,
		FetchedAtUTC:           nowUTC(),
		ContentLength:          int64(len(raw)),
		RawSHA256:              rawSHA,
		NormalizedSHA256:       normalizedSHA,
		TextExtracted:          extracted,
		TextExtractionFailed:   extractionFailed,
		NormalizedHashFallback: fallback,
		HeadersUsedRedacted:    headers,
	}, nil
}

// isLikelyText is a coarse text-extraction heuristic: declared text/*,
// JSON, XML, or HTML content types, or content with no declared type and
// no NUL bytes in the first 1KiB, are treated as extractable text.
func isLikelyText(contentType string, raw []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") || strings.Contains(ct, "json") || strings.Contains(ct, "xml") || strings.Contains(ct, "html") {
		return true
	}
	n := len(raw)
	if n > 1024 {
		n = 1024
	}
	for i := 0; i < n; i++ {
		if raw[i] == 0 {
			return false
		}
	}
	return ct == ""
}

func loadOfflineSnapshot(manifestDir, evidenceURL string) (*model.EvidenceSnapshot, error) {
	jsonPath := filepath.Join(manifestDir, "license_evidence.json")
	var snap model.EvidenceSnapshot
	if err := ledger.ReadJSON(jsonPath, &snap); err != nil {
		if evidenceURL == "" {
			return nil, nil
		}
		if os.IsNotExist(err) {
			return nil, nil // caller detects no_fetch_missing_evidence via nil + url present
		}
		return nil, err
	}
	return &snap, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
