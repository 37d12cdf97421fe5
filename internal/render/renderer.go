package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"golang.org/x/time/rate"

	"github.com/muandane/special-stack/invoicer/internal/invoice"
)

// Renderer produces a PDF document for an invoice snapshot.
type Renderer interface {
	Render(ctx context.Context, inv *invoice.Invoice) (*Document, error)
}

// convertPath is the Chromium HTML route of Gotenberg-compatible engines.
const convertPath = "/forms/chromium/convert/html"

// maxPDFBytes bounds how much of a conversion response is read.
const maxPDFBytes = 32 << 20

// HTTPRenderer posts invoice HTML to a conversion engine and inspects the
// returned PDF. Requests are throttled by a token bucket.
type HTTPRenderer struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

type HTTPRendererOptions struct {
	Endpoint string
	Timeout  time.Duration
	// Rate is the sustained number of conversions per second.
	Rate   float64
	Burst  int
	Logger *slog.Logger
}

func NewHTTPRenderer(opts HTTPRendererOptions) (*HTTPRenderer, error) {
	if opts.Endpoint == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "render endpoint cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &HTTPRenderer{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		logger:   opts.Logger,
	}, nil
}

func (r *HTTPRenderer) Render(ctx context.Context, inv *invoice.Invoice) (*Document, error) {
	start := time.Now()
	logger := r.logger.With("invoice_id", inv.ID.String())

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeRateLimit, "render throttled")
	}

	body, contentType, err := r.form(inv)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+convertPath, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to build render request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Error("render request failed", "error", err)
		return nil, errors.Wrap(err, errors.CodeNetwork, "render request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Error("render engine rejected request",
			"status", resp.StatusCode,
			"body", string(msg),
		)
		return nil, errors.WithContext(
			errors.Newf(errors.CodeUnavailable, "render engine returned %d", resp.StatusCode),
			"invoice_id", inv.ID.String(),
		)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "failed to read rendered pdf")
	}

	doc, err := Inspect(data)
	if err != nil {
		logger.Error("render engine returned unreadable pdf", "error", err, "size", len(data))
		return nil, err
	}

	logger.Info("invoice rendered",
		"pages", doc.PageCount(),
		"size", doc.Len(),
		"duration", time.Since(start).String(),
	)
	return doc, nil
}

// form builds the multipart body: index.html plus US Letter paper in inches.
func (r *HTTPRenderer) form(inv *invoice.Invoice) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CodeInternal, "failed to build render form")
	}
	if err := ComposeHTML(fw, inv); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"paperWidth":      "8.5",
		"paperHeight":     "11",
		"printBackground": "true",
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("failed to write %s", name))
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, errors.CodeInternal, "failed to build render form")
	}
	return &buf, mw.FormDataContentType(), nil
}
