package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the page chrome and lists the configured bots in the header.
func Layout(title string, bots []string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</title><style>`+pageCSS+`</style></head><body><header><h1>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</h1><p class="bots">Bots:`); err != nil {
			return err
		}
		for _, bot := range bots {
			if _, err := io.WriteString(w, ` <code>@`+templ.EscapeString(bot)+`</code>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</p></header><main>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

const pageCSS = `body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#1f2328}` +
	`header{border-bottom:1px solid #d0d7de;margin-bottom:1.5rem}` +
	`code,pre{background:#f6f8fa;border-radius:4px}pre{padding:.75rem;overflow-x:auto}` +
	`table{border-collapse:collapse}td,th{border:1px solid #d0d7de;padding:.3rem .6rem}`
