package repository

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/CosmoTheDev/pct/internal/config"
)

// ErrNoToken is returned when a SARIF upload is attempted without a token.
var ErrNoToken = errors.New("github token is required to upload SARIF (set github.token or PCT_GITHUB_TOKEN)")

// Upload identifies one SARIF upload.
type Upload struct {
	Owner     string
	Repo      string
	CommitSHA string
	// Ref is a fully qualified git ref, e.g. refs/heads/main.
	Ref         string
	CheckoutURI string
	StartedAt   time.Time
	SARIF       []byte
}

// UploadReceipt is GitHub's acknowledgement of an accepted upload.
type UploadReceipt struct {
	ID  string
	URL string
}

// SARIFUploader publishes SARIF reports to GitHub code scanning, including
// GitHub Enterprise Server.
type SARIFUploader struct {
	client *gogithub.Client
	logger *slog.Logger
}

// NewSARIFUploader creates an uploader from the GitHub configuration.
func NewSARIFUploader(cfg config.GitHubConfig, logger *slog.Logger) (*SARIFUploader, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}
	return newSARIFUploader(client, logger), nil
}

func newSARIFUploader(client *gogithub.Client, logger *slog.Logger) *SARIFUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SARIFUploader{client: client, logger: logger}
}

// Upload gzips and base64-encodes the SARIF document and posts it to the
// repository's code scanning endpoint. GitHub processes uploads
// asynchronously; a 202 counts as success.
func (u *SARIFUploader) Upload(ctx context.Context, up Upload) (*UploadReceipt, error) {
	if err := up.validate(); err != nil {
		return nil, err
	}
	encoded, err := encodeSARIF(up.SARIF)
	if err != nil {
		return nil, err
	}

	analysis := &gogithub.SarifAnalysis{
		CommitSHA: gogithub.Ptr(up.CommitSHA),
		Ref:       gogithub.Ptr(up.Ref),
		Sarif:     gogithub.Ptr(encoded),
		ToolName:  gogithub.Ptr("pct"),
	}
	if up.CheckoutURI != "" {
		analysis.CheckoutURI = gogithub.Ptr(up.CheckoutURI)
	}
	if !up.StartedAt.IsZero() {
		analysis.StartedAt = &gogithub.Timestamp{Time: up.StartedAt.UTC()}
	}

	id, _, err := u.client.CodeScanning.UploadSarif(ctx, up.Owner, up.Repo, analysis)
	if err != nil {
		var accepted *gogithub.AcceptedError
		if !errors.As(err, &accepted) {
			return nil, fmt.Errorf("uploading SARIF to %s/%s: %w", up.Owner, up.Repo, err)
		}
		id = new(gogithub.SarifID)
		if len(accepted.Raw) > 0 {
			if err := json.Unmarshal(accepted.Raw, id); err != nil {
				return nil, fmt.Errorf("decoding SARIF upload receipt: %w", err)
			}
		}
	}

	receipt := &UploadReceipt{}
	if id != nil {
		receipt.ID = id.GetID()
		receipt.URL = id.GetURL()
	}
	u.logger.Info("SARIF uploaded",
		"repo", up.Owner+"/"+up.Repo,
		"ref", up.Ref,
		"commit", shortSHA(up.CommitSHA),
		"sarif_id", receipt.ID,
	)
	return receipt, nil
}

func (up Upload) validate() error {
	var missing []string
	if up.Owner == "" || up.Repo == "" {
		missing = append(missing, "owner/repo")
	}
	if len(up.CommitSHA) != 40 {
		missing = append(missing, "40-character commit SHA")
	}
	if !strings.HasPrefix(up.Ref, "refs/") {
		missing = append(missing, "fully qualified ref")
	}
	if len(up.SARIF) == 0 {
		missing = append(missing, "SARIF document")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid SARIF upload: need %s", strings.Join(missing, ", "))
	}
	return nil
}

func encodeSARIF(doc []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return "", fmt.Errorf("compressing SARIF: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compressing SARIF: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SplitFullName parses "owner/repo".
func SplitFullName(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("expected owner/repo, got %q", s)
	}
	return owner, repo, nil
}
