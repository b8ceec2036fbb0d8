package structured

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/structmail/structmail/internal/config"
)

// Delimiters marking an embedded structured-data block inside an HTML body.
const (
	ScriptOpenTag  = `<script type="application/ld+json">`
	ScriptCloseTag = `</script>`
)

// Extractor locates structured-data documents in message bodies. The
// inline path scans for the ld+json script delimiters; the fallback path
// pipes the raw message through an external extractor binary, and is only
// attempted for senders on the trusted-domain allowlist.
type Extractor struct {
	logger         *slog.Logger
	binaryPath     string
	trustedDomains []string
	cfg            config.ExtractorConfig
}

func NewExtractor(log *slog.Logger, cfg config.ExtractorConfig) *Extractor {
	return &Extractor{
		logger:         log.With(slog.String("service", "extractor")),
		binaryPath:     cfg.BinaryPath,
		trustedDomains: cfg.TrustedDomains,
		cfg:            cfg,
	}
}

// InlineDocument scans an HTML fragment for the first embedded ld+json
// block and decodes it. Script-like content before the block is ignored;
// anything malformed yields (nil, false).
func InlineDocument(html string) (*Document, bool) {
	start := strings.Index(html, ScriptOpenTag)
	if start < 0 {
		return nil, false
	}
	rest := html[start+len(ScriptOpenTag):]
	end := strings.Index(rest, ScriptCloseTag)
	if end < 0 {
		return nil, false
	}
	return Parse(rest[:end])
}

// FromHTML is the inline extraction tier.
func (e *Extractor) FromHTML(html string) (*Document, bool) {
	return InlineDocument(html)
}

// FromRaw feeds the raw message bytes to the external extractor binary and
// decodes whatever it writes to stdout. A binary that cannot be started,
// times out, or produces no usable output is a soft failure: (nil, false).
// The exit code is not inspected beyond the presence of output.
func (e *Extractor) FromRaw(ctx context.Context, raw []byte) (*Document, bool) {
	if e.binaryPath == "" || len(raw) == 0 {
		return nil, false
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout())
	defer cancel()

	cmd := exec.CommandContext(cctx, e.binaryPath)
	cmd.Stdin = bytes.NewReader(raw)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil && out.Len() == 0 {
		e.logger.Warn("extractor subprocess failed",
			slog.String("binary", e.binaryPath),
			slog.Any("error", err))
		return nil, false
	}

	doc, ok := Parse(out.String())
	if !ok {
		return nil, false
	}
	return doc, true
}

// SenderTrusted reports whether the sender address belongs to a domain on
// the fallback allowlist.
func (e *Extractor) SenderTrusted(from string) bool {
	for _, domain := range e.trustedDomains {
		if domain != "" && strings.Contains(from, domain) {
			return true
		}
	}
	return false
}

// Extract runs the two-tier extraction: the inline HTML scan first, then
// the subprocess fallback when the sender's domain allows it. rawBody is
// only consulted on the fallback path so the common case stays cheap.
func (e *Extractor) Extract(ctx context.Context, html, from string, rawBody func(context.Context) ([]byte, error)) (*Document, bool) {
	if doc, ok := e.FromHTML(html); ok {
		return doc, true
	}
	if rawBody == nil || !e.SenderTrusted(from) {
		return nil, false
	}
	raw, err := rawBody(ctx)
	if err != nil {
		e.logger.Warn("raw body unavailable for fallback extraction", slog.Any("error", err))
		return nil, false
	}
	return e.FromRaw(ctx, raw)
}
