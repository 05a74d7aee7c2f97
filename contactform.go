package main

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"spreetzit/api/mailer"

	"github.com/gin-gonic/gin"
)

// ContactSubmission is the validated contact form payload. It lives for the
// duration of one request and is only ever relayed onward as email content.
type ContactSubmission struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Organization string `json:"organization"`
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	Language     string `json:"lang"`
	CaptchaToken string `json:"h-captcha-response"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validateContactSubmission checks the relayed fields after the captcha has
// been verified. The apiError code doubles as the metric outcome label.
func validateContactSubmission(sub ContactSubmission) error {
	if sub.Email == "" || sub.Name == "" || sub.Surname == "" || sub.Organization == "" || sub.Subject == "" || sub.Description == "" {
		return &apiError{Status: http.StatusBadRequest, Code: "missing_fields", Message: "Missing required fields"}
	}
	if !isValidEmail(sub.Email) {
		return &apiError{Status: http.StatusBadRequest, Code: "invalid_email", Message: "Invalid email address"}
	}
	return nil
}

// contactFormHandler relays a contact form submission: captcha verification,
// field validation, then one operator notification and one localized
// confirmation email. Single attempt, no retries.
func (a *App) contactFormHandler(c *gin.Context) {
	var sub ContactSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		metricContactForm.WithLabelValues("invalid_payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}
	if sub.Language == "" {
		sub.Language = defaultLanguage
	}

	if sub.CaptchaToken == "" {
		metricContactForm.WithLabelValues("missing_captcha").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing hCaptcha token"})
		return
	}

	if a.cfg.HCaptchaSecret == "" {
		a.log.Error("hcaptcha secret not configured")
		metricContactForm.WithLabelValues("config_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "hCaptcha configuration missing"})
		return
	}

	verification, err := a.verifyCaptcha(c, sub.CaptchaToken, c.ClientIP())
	if err != nil {
		a.log.Error("captcha verification unavailable", "err", err)
		metricContactForm.WithLabelValues("captcha_unavailable").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "hCaptcha verification failed"})
		return
	}
	if !verification.Success {
		a.log.Warn("captcha rejected", "error_codes", strings.Join(verification.ErrorCodes, ","))
		metricContactForm.WithLabelValues("captcha_rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid hCaptcha",
			"details": verification.ErrorCodes,
		})
		return
	}

	if err := validateContactSubmission(sub); err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			apiErr = &apiError{Status: http.StatusBadRequest, Code: "invalid_payload", Message: "Invalid request payload"}
		}
		metricContactForm.WithLabelValues(apiErr.Code).Inc()
		c.JSON(apiErr.Status, gin.H{"success": false, "error": apiErr.Message})
		return
	}

	if a.mailFrom == "" {
		a.log.Error("mail sender not configured", "provider", a.mailer.ProviderName())
		metricContactForm.WithLabelValues("config_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Email configuration missing"})
		return
	}

	fields, err := contactTemplateFields(sub)
	if err != nil {
		a.log.Error("failed to prepare email fields", "err", err)
		metricContactForm.WithLabelValues("internal_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	operatorTmpl := a.resolveEmailTemplate(c, operatorTemplateKey, defaultLanguage)
	confirmationTmpl := a.resolveEmailTemplate(c, confirmationTemplateKey, sub.Language)

	operatorTo := a.cfg.OperatorEmail
	if operatorTo == "" {
		operatorTo = a.mailFrom
	}

	operatorMsg := mailer.Message{
		To:      []string{operatorTo},
		ReplyTo: sub.Email,
		Subject: fillTemplate(operatorTmpl.Subject, fields),
		HTML:    fillTemplate(operatorTmpl.Body, fields),
		Text:    fillTemplate(operatorTmpl.Text, fields),
	}
	confirmationMsg := mailer.Message{
		To:      []string{sub.Email},
		Subject: fillTemplate(confirmationTmpl.Subject, fields),
		HTML:    fillTemplate(confirmationTmpl.Body, fields),
		Text:    fillTemplate(confirmationTmpl.Text, fields),
	}

	// Both sends run concurrently and both must succeed; either failure is a
	// single delivery error to the caller.
	var wg sync.WaitGroup
	sendErrs := make([]error, 2)
	for i, msg := range []mailer.Message{operatorMsg, confirmationMsg} {
		wg.Add(1)
		go func(i int, msg mailer.Message) {
			defer wg.Done()
			_, sendErrs[i] = a.mailer.Send(msg)
		}(i, msg)
	}
	wg.Wait()

	for _, sendErr := range sendErrs {
		if sendErr != nil {
			a.log.Error("contact email dispatch failed", "err", sendErr)
			metricContactForm.WithLabelValues("delivery_error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to send email"})
			return
		}
	}

	a.log.Info("contact form relayed",
		"language", sub.Language,
		"provider", a.mailer.ProviderName(),
	)
	metricContactForm.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
