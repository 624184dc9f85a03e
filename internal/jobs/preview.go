package jobs

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"daycal/internal/capture"
	"daycal/internal/config"
	appLog "daycal/internal/log"
	"daycal/internal/model"
)

// previewSessionTTL bounds the throwaway session used by the browser.
const previewSessionTTL = 5 * time.Minute

// PreviewStore is what the preview job needs to sign the browser in.
type PreviewStore interface {
	UserByName(ctx context.Context, username string) (model.User, error)
	CreateSession(ctx context.Context, token, userID string, ttl time.Duration) (model.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// CaptureFunc writes a screenshot of opts.URL to path.
type CaptureFunc func(ctx context.Context, opts capture.Options, path string) error

// PreviewJob screenshots the configured user's month page.
type PreviewJob struct {
	store   PreviewStore
	baseURL string
	cfg     config.PreviewConfig
	capture CaptureFunc
}

// NewPreviewJob renders pages served at listen. capt nil uses Chromium.
func NewPreviewJob(st PreviewStore, listen string, cfg config.PreviewConfig, capt CaptureFunc) *PreviewJob {
	if capt == nil {
		capt = capture.CaptureToFile
	}
	return &PreviewJob{store: st, baseURL: LocalURL(listen), cfg: cfg, capture: capt}
}

// Run signs in as the preview user with a short session, captures the month
// page and revokes the session again.
func (p *PreviewJob) Run(ctx context.Context) error {
	user, err := p.store.UserByName(ctx, p.cfg.User)
	if err != nil {
		return fmt.Errorf("preview: user %q: %w", p.cfg.User, err)
	}

	token := uuid.NewString()
	if _, err := p.store.CreateSession(ctx, token, user.ID, previewSessionTTL); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	defer func() {
		if err := p.store.DeleteSession(context.WithoutCancel(ctx), token); err != nil {
			appLog.Warn("preview: session cleanup failed", "err", err)
		}
	}()

	opts := capture.Options{
		URL:    p.baseURL + "/",
		Token:  token,
		Width:  p.cfg.Width,
		Height: p.cfg.Height,
	}
	start := time.Now()
	if err := p.capture(ctx, opts, p.cfg.Output); err != nil {
		return err
	}
	appLog.Info("preview captured", "user", p.cfg.User, "output", p.cfg.Output, "took", time.Since(start))
	return nil
}

// LocalURL turns a listen address into a URL reachable from this host.
func LocalURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
