package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Base wraps body in the HTML document and site navigation.
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := NewPrinter(w)
		p.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.Raw(`<title>`).Text(title).Raw(` | Scribe</title></head><body>`)

		p.Raw(`<header><nav><a href="/">Scribe</a>`)
		if IsAuthenticated(ctx) {
			p.Raw(` <a href="/dashboard">Dashboard</a> <span class="who">`).Text(UserEmail(ctx)).Raw(`</span>`)
			p.Raw(`<form method="post" action="/logout" class="inline">`)
			CSRFField(ctx, p)
			p.Raw(`<button type="submit">Sign out</button></form>`)
		} else {
			p.Raw(` <a href="/login">Sign in</a>`)
		}
		p.Raw(`</nav></header>`)

		if msg := Flash(ctx); msg != "" {
			p.Raw(`<p class="flash">`).Text(msg).Raw(`</p>`)
		}

		p.Raw(`<main>`)
		if err := p.Err(); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.Raw(`</main></body></html>`)
		return p.Err()
	})
}

// CSRFField writes the hidden token input every POST form needs.
func CSRFField(ctx context.Context, p *Printer) {
	p.Raw(`<input type="hidden" name="csrf_token" value="`).Text(CSRFToken(ctx)).Raw(`">`)
}

// Printer writes HTML fragments, escaping dynamic text, and remembers the
// first write error so callers can check once at the end.
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter wraps w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

// Raw writes trusted markup.
func (p *Printer) Raw(s string) *Printer {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
	return p
}

// Text writes s HTML-escaped.
func (p *Printer) Text(s string) *Printer {
	return p.Raw(templ.EscapeString(s))
}

// Err returns the first write error.
func (p *Printer) Err() error { return p.err }
