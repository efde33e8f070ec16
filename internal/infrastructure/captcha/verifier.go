package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// SiteVerifier checks captcha proofs against a siteverify endpoint
// (reCAPTCHA, hCaptcha and Turnstile share the protocol).
type SiteVerifier struct {
	verifyURL string
	secret    string
	client    *http.Client
	logger    *zap.Logger
}

// NewSiteVerifier creates a new siteverify client
func NewSiteVerifier(verifyURL, secret string, timeout time.Duration, logger *zap.Logger) *SiteVerifier {
	return &SiteVerifier{
		verifyURL: verifyURL,
		secret:    secret,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Verify returns domain.ErrCaptchaRejected when the provider refuses the
// proof. Transport failures are returned as is.
func (v *SiteVerifier) Verify(ctx context.Context, proof string) error {
	if strings.TrimSpace(proof) == "" {
		return domain.ErrCaptchaRejected
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", proof)
	if ip, ok := domain.GetClientIP(ctx); ok {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha provider returned status %d", resp.StatusCode)
	}

	var result siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode captcha response: %w", err)
	}

	if !result.Success {
		v.logger.Debug("captcha rejected", zap.Strings("error_codes", result.ErrorCodes))
		return domain.ErrCaptchaRejected
	}
	return nil
}

// Disabled accepts every proof. It is wired when the policy does not require
// a captcha.
type Disabled struct{}

func (Disabled) Verify(context.Context, string) error { return nil }
