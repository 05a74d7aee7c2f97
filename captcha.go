package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CaptchaVerification is the provider's verdict for one token, consumed once.
type CaptchaVerification struct {
	Success    bool
	ErrorCodes []string
}

// HCaptchaVerifier checks captcha tokens against the hCaptcha siteverify
// endpoint.
type HCaptchaVerifier struct {
	VerifyURL string
	Client    *http.Client
}

func (v *HCaptchaVerifier) Verify(ctx context.Context, secret, token, remoteIP string) (*CaptchaVerification, error) {
	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hcaptcha request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("hcaptcha error (%d): %s", resp.StatusCode, string(body))
	}

	// error-codes arrives as either a string or an array of strings.
	var data struct {
		Success    bool            `json:"success"`
		ErrorCodes json.RawMessage `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("hcaptcha decode failed: %w", err)
	}

	result := &CaptchaVerification{Success: data.Success}
	if len(data.ErrorCodes) > 0 {
		var codes []string
		if err := json.Unmarshal(data.ErrorCodes, &codes); err == nil {
			result.ErrorCodes = codes
		} else {
			var single string
			if err := json.Unmarshal(data.ErrorCodes, &single); err == nil && single != "" {
				result.ErrorCodes = []string{single}
			}
		}
	}
	return result, nil
}

// captchaPrecheckHandler lets the form widget validate a token before the
// actual submission. The token arrives either under the widget's own field
// name or as a plain "token".
func (a *App) captchaPrecheckHandler(c *gin.Context) {
	var payload struct {
		HCaptchaResponse string `json:"h-captcha-response"`
		Token            string `json:"token"`
	}
	// A malformed body is treated the same as an empty one.
	_ = c.ShouldBindJSON(&payload)

	token := payload.HCaptchaResponse
	if token == "" {
		token = payload.Token
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "missing-input-response"})
		return
	}

	if a.cfg.HCaptchaSecret == "" {
		a.log.Error("hcaptcha secret not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "missing-input-secret"})
		return
	}

	verification, err := a.verifyCaptcha(c, token, "")
	if err != nil {
		a.log.Error("captcha verification unavailable", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "captcha-verify-failed"})
		return
	}

	if !verification.Success {
		message := "captcha-invalid"
		if len(verification.ErrorCodes) > 0 {
			message = strings.Join(verification.ErrorCodes, ", ")
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
