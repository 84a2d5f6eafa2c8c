package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/budget"
	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/netguard"
	"github.com/dataset-commons/dc-pipeline/internal/safepath"
)

// allowedContentTypePrefixes is the default content-type allowlist: the
// acquire worker refuses to persist a response whose Content-Type does
// not start with one of these, since a target's download URL silently
// redirecting to an HTML error/login page is a common corrupted-payload
// cause. A response with no Content-Type header is accepted.
var allowedContentTypePrefixes = []string{
	"application/", "text/csv", "text/plain", "text/tab-separated-values",
	"binary/octet-stream", "image/", "audio/", "video/",
}

func contentTypeAllowed(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	for _, p := range allowedContentTypePrefixes {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return false
}

// FetchHTTP is the http strategy: resumable GET with Range, SSRF-checked
// redirects, content-type allowlisting, and Content-Disposition-derived
// filenames, one Result per URL in the target's download plan.
func FetchHTTP(env Env, row model.QueueRow, outDir string) []Result {
	urls := row.Download.URLList()
	if len(urls) == 0 {
		return []Result{{Status: "error", Error: "no urls configured"}}
	}
	results := make([]Result, 0, len(urls))
	for i, u := range urls {
		filename := filenameFor(row.Download, i, u)
		results = append(results, fetchOneHTTP(env, u, filepath.Join(outDir, filename)))
	}
	return results
}

func filenameFor(plan model.DownloadPlan, idx int, rawURL string) string {
	if idx == 0 && plan.Filename != "" {
		return safepath.SanitizeFilename(plan.Filename)
	}
	if idx < len(plan.Filenames) && plan.Filenames[idx] != "" {
		return safepath.SanitizeFilename(plan.Filenames[idx])
	}
	if u, err := url.Parse(rawURL); err == nil {
		base := filepath.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			return safepath.SanitizeFilename(base)
		}
	}
	return "payload.bin"
}

func fetchOneHTTP(env Env, rawURL, destPath string) Result {
	if err := netguard.CheckURL(env.Ctx, env.Resolver, rawURL, env.Allowlist, env.AllowNonGlobal); err != nil {
		if be, ok := err.(*netguard.BlockedError); ok {
			return Result{Status: "error", Error: be.Error(), BlockedURL: be.URL}
		}
		return Result{Status: "error", Error: err.Error()}
	}

	var resumeFrom int64
	if env.Resume {
		if fi, err := os.Stat(destPath); err == nil {
			resumeFrom = fi.Size()
		}
	}
	if env.Overwrite {
		resumeFrom = 0
		_ = os.Remove(destPath)
	}

	client := &http.Client{
		Timeout: 0,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 10 {
				return fmt.Errorf("too many redirects")
			}
			if err := netguard.CheckURL(env.Ctx, env.Resolver, req.URL.String(), env.Allowlist, env.AllowNonGlobal); err != nil {
				return err
			}
			return nil
		},
	}

	var lastErr error
	maxAttempts := 4
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if env.Enforcer != nil {
			if err := env.Enforcer.StartFile(); err != nil {
				var lim *budget.LimitExceededError
				errors.As(err, &lim)
				return Result{Status: "error", Error: err.Error(), LimitType: string(lim.LimitType)}
			}
		}
		res, err := attemptHTTPFetch(env, client, rawURL, destPath, resumeFrom)
		if err == nil {
			return res
		}
		if be, ok := err.(*netguard.BlockedError); ok {
			return Result{Status: "error", Error: be.Error(), BlockedURL: be.URL}
		}
		var lim *budget.LimitExceededError
		if errors.As(err, &lim) {
			return Result{Status: "error", Error: err.Error(), LimitType: string(lim.LimitType)}
		}
		lastErr = err
		if se, ok := err.(*statusError); ok && !se.transient {
			break
		}
		select {
		case <-env.Ctx.Done():
			return Result{Status: "error", Error: env.Ctx.Err().Error()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return Result{Status: "error", Error: lastErr.Error()}
}

type statusError struct {
	code      int
	transient bool
}

func (e *statusError) Error() string { return fmt.Sprintf("http status %d", e.code) }

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func attemptHTTPFetch(env Env, client *http.Client, rawURL, destPath string, resumeFrom int64) (Result, error) {
	req, err := http.NewRequestWithContext(env.Ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, &statusError{code: resp.StatusCode, transient: isTransientStatus(resp.StatusCode)}
	}
	if !contentTypeAllowed(resp.Header.Get("Content-Type")) {
		return Result{Status: "error", Error: "content-type not allowed: " + resp.Header.Get("Content-Type")}, nil
	}

	finalDest := destPath
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			finalDest = filepath.Join(filepath.Dir(destPath), safepath.SanitizeFilename(params["filename"]))
		}
	}

	appendMode := resp.StatusCode == http.StatusPartialContent && resumeFrom > 0
	if err := os.MkdirAll(filepath.Dir(finalDest), 0o755); err != nil {
		return Result{}, err
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && env.Enforcer != nil {
			if err := env.Enforcer.CheckSizeHint(n); err != nil {
				return Result{}, err
			}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(finalDest, flags, 0o644)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	h := sha256.New()
	var fileBytes int64 = resumeFrom
	if !appendMode {
		fileBytes = 0
	}
	buf := make([]byte, 256*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			fileBytes += int64(n)
			if env.Enforcer != nil {
				if err := env.Enforcer.AddBytes(int64(n), fileBytes); err != nil {
					return Result{}, err
				}
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return Result{}, werr
			}
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{}, rerr
		}
	}

	return Result{
		Status:        "ok",
		Path:          finalDest,
		ContentLength: fileBytes,
		SHA256:        hex.EncodeToString(h.Sum(nil)),
	}, nil
}
