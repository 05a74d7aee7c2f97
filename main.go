package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"spreetzit/api/mailer"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultLanguage          = "it"
	englishLanguage          = "en"
	homeSlug                 = "index"
	englishRootSlug          = "en"
	hcaptchaVerifyURL        = "https://hcaptcha.com/siteverify"
	outboundRequestTimeout   = 10 * time.Second
	defaultSanityAPIVersion  = "2024-01-01"
	trustedProxyLoopbackIPv4 = "127.0.0.1"
	trustedProxyLoopbackIPv6 = "::1"
	devCORSOriginLocalhost   = "http://localhost:3000"
	devCORSOriginLoopback    = "http://127.0.0.1:3000"
)

var supportedLanguages = []string{defaultLanguage, englishLanguage}

// languageRootPaths maps each supported language to the path of its site root.
var languageRootPaths = map[string]string{
	defaultLanguage: "/",
	englishLanguage: "/en",
}

type Config struct {
	Addr          string
	Env           string
	PublicBaseURL string

	SanityProjectID  string
	SanityDataset    string
	SanityAPIVersion string
	SanityToken      string
	SanityUseCDN     bool

	HCaptchaSecret  string
	HCaptchaSiteKey string

	RevalidateSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ResendAPIKey string

	OperatorEmail       string
	MailerFromAddresses map[string]string
}

type App struct {
	cfg    *Config
	log    *slog.Logger
	cms    *CMSClient
	mailer *mailer.Mailer
	pages  *pageCache

	// default sender for outgoing mail; empty means the transport is not
	// configured and the contact form must refuse to dispatch
	mailFrom string

	// test hooks for outbound calls
	fetchPageBySlug    func(c *gin.Context, slug string) (*Page, error)
	fetchPosts         func(c *gin.Context) ([]Post, error)
	fetchEmailTemplate func(c *gin.Context, key, language string) (*EmailTemplate, error)
	verifyCaptcha      func(c *gin.Context, token, remoteIP string) (*CaptchaVerification, error)
	runRawQuery        func(c *gin.Context, query string) ([]byte, error)
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	httpClient := &http.Client{Timeout: outboundRequestTimeout}
	cms := NewCMSClient(cfg, httpClient)
	verifier := &HCaptchaVerifier{VerifyURL: hcaptchaVerifyURL, Client: httpClient}

	var mailProvider mailer.Provider
	switch {
	case cfg.SMTPHost != "" && cfg.SMTPUsername != "" && cfg.SMTPPassword != "":
		mailProvider = mailer.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		logger.Info("mailer initialized", "provider", "smtp", "host", cfg.SMTPHost)
	case cfg.ResendAPIKey != "":
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	default:
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	mailFrom := cfg.MailerFromAddresses[mailProvider.Name()]
	mailClient := mailer.New(mailProvider, mailFrom)

	app := &App{
		cfg:      cfg,
		log:      logger,
		cms:      cms,
		mailer:   mailClient,
		pages:    newPageCache(),
		mailFrom: mailFrom,
	}

	// Outbound calls go through hooks so tests can substitute them.
	app.fetchPageBySlug = func(c *gin.Context, slug string) (*Page, error) {
		return cms.PageBySlug(c.Request.Context(), slug)
	}
	app.fetchPosts = func(c *gin.Context) ([]Post, error) {
		return cms.Posts(c.Request.Context())
	}
	app.fetchEmailTemplate = func(c *gin.Context, key, language string) (*EmailTemplate, error) {
		return cms.EmailTemplate(c.Request.Context(), key, language)
	}
	app.verifyCaptcha = func(c *gin.Context, token, remoteIP string) (*CaptchaVerification, error) {
		return verifier.Verify(c.Request.Context(), cfg.HCaptchaSecret, token, remoteIP)
	}
	app.runRawQuery = func(c *gin.Context, query string) ([]byte, error) {
		return cms.RawQuery(c.Request.Context(), query)
	}

	if cfg.RevalidateSecret == "" {
		logger.Warn("REVALIDATE_SECRET not set; webhook revalidation will reject all requests")
	}

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"sanity_project", cfg.SanityProjectID,
		"sanity_dataset", cfg.SanityDataset,
	)

	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(app.loggingMiddleware())
	r.Use(app.corsMiddleware())

	app.registerRoutes(r)

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

func (a *App) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/contactform", a.contactFormHandler)
		api.POST("/captcha", a.captchaPrecheckHandler)
		api.POST("/revalidate", a.revalidateHandler)
		api.GET("/check-page", a.checkPageHandler)
		api.GET("/sanity", a.rawQueryHandler)
	}

	// The language roots get explicit routes; every other slug (single or
	// multi segment) falls through to the catch-all page resolver. Gin's
	// router cannot mix /:slug with static siblings at the root level, so
	// the resolver hangs off NoRoute.
	r.GET("/", a.pageHandler)
	r.GET("/en", a.pageHandler)
	r.NoRoute(a.pageHandler)
}

func loadConfig() (*Config, error) {
	projectID := strings.TrimSpace(os.Getenv("SANITY_PROJECT_ID"))
	if projectID == "" {
		return nil, fmt.Errorf("SANITY_PROJECT_ID must be configured")
	}

	publicBase := strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))
	if publicBase == "" {
		publicBase = "https://spreetzit.com"
	}
	publicBase = strings.TrimRight(publicBase, "/")

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	cfg := &Config{
		Addr:             valueOrDefault("GIN_ADDR", ":8080"),
		Env:              env,
		PublicBaseURL:    publicBase,
		SanityProjectID:  projectID,
		SanityDataset:    valueOrDefault("SANITY_DATASET", "production"),
		SanityAPIVersion: valueOrDefault("SANITY_API_VERSION", defaultSanityAPIVersion),
		SanityToken:      strings.TrimSpace(os.Getenv("SANITY_TOKEN")),
		SanityUseCDN:     strings.EqualFold(valueOrDefault("SANITY_USE_CDN", "true"), "true"),
		HCaptchaSecret:   strings.TrimSpace(os.Getenv("HCAPTCHA_SECRET_KEY")),
		HCaptchaSiteKey:  strings.TrimSpace(os.Getenv("HCAPTCHA_SITE_KEY")),
		RevalidateSecret: strings.TrimSpace(os.Getenv("REVALIDATE_SECRET")),
		SMTPHost:         strings.TrimSpace(os.Getenv("MAIL_SMTP_HOST")),
		SMTPPort:         587,
		SMTPUsername:     strings.TrimSpace(os.Getenv("MAIL_SENDER_ACCOUNT_USERNAME")),
		SMTPPassword:     os.Getenv("MAIL_SENDER_ACCOUNT_PASSWORD"),
		ResendAPIKey:     strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		OperatorEmail:    strings.TrimSpace(os.Getenv("CONTACT_OPERATOR_EMAIL")),
		MailerFromAddresses: map[string]string{
			"smtp":   strings.TrimSpace(os.Getenv("MAIL_SENDER_ACCOUNT_EMAIL")),
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@mail.spreetzit.com"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@spreetzit.local"),
		},
	}

	if rawPort := strings.TrimSpace(os.Getenv("MAIL_SMTP_PORT")); rawPort != "" {
		parsed, err := strconv.Atoi(rawPort)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("MAIL_SMTP_PORT must be a positive number")
		}
		cfg.SMTPPort = parsed
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if a.isAllowedCORSOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *App) isAllowedCORSOrigin(origin string) bool {
	if origin == "" || a.cfg == nil {
		return false
	}
	if a.cfg.PublicBaseURL != "" && origin == a.cfg.PublicBaseURL {
		return true
	}
	if !strings.EqualFold(a.cfg.Env, "development") {
		return false
	}
	return origin == devCORSOriginLocalhost || origin == devCORSOriginLoopback
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Internal server error"})
}
