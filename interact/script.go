// Package interact runs the best-effort contact-form submission on a
// listing detail page.
package interact

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/extract"
)

// DefaultMessage is the message sent when no template file is configured.
const DefaultMessage = `Buongiorno,

Abbiamo visto il suo annuncio su Idealista. Offriamo servizi digitali per valorizzare la sua vendita indipendente, con visite virtuali 3D e fotografie professionali che accelerano la vendita e migliorano l'esperienza degli acquirenti.

Prisma3D non è un'agenzia immobiliare, ma le forniamo strumenti avanzati: visite virtuali, foto di alta qualità, planimetrie, misurazioni precise e analisi dettagliate, il tutto a tariffe competitive.

Perché una visita virtuale 3D?
→ Permette agli acquirenti di esplorare l'immobile da casa, attirando più clienti seri e riducendo i tempi di vendita.

I vantaggi:
→ Studi dimostrano che le visite 3D rendono le vendite più rapide, le negoziazioni più efficaci e migliorano il valore finale della transazione.

Scopra di più su www.prisma3d.it. Restiamo a disposizione!

Cordiali saluti,
Il team Prisma3D`

// Script locates the message input and a submit control, fills the input
// and double-triggers the control.
type Script struct {
	Inputs  []extract.Locator
	Submits []extract.Locator
	Message string

	// Delay is the settle time after each trigger.
	Delay time.Duration
}

// DefaultScript returns the script for the desktop and mobile contact forms.
func DefaultScript(message string, delay time.Duration) *Script {
	if message == "" {
		message = DefaultMessage
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Script{
		Inputs: extract.MustLocators(
			`textarea[name="contact-message"]`,
			"textarea#contact-message",
		),
		Submits: extract.MustLocators(
			"button.submit-button.btn.action.txt-bold.txt-big.desktop.button-chat.icon-chat",
			"button.submit-button.btn.action.txt-bold.txt-big.no-desktop.button-chat.icon-chat",
		),
		Message: message,
		Delay:   delay,
	}
}

// Attempt reports whether the submission was carried out. There is no
// readback, so a completed double-trigger counts as sent. Failures are
// logged and reported as false.
func (s *Script) Attempt(ctx context.Context, page browser.Page) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("interaction panicked", "url", page.URL(), "panic", r)
			sent = false
		}
	}()

	doc, err := page.Document(ctx)
	if err != nil {
		slog.Warn("interaction snapshot failed", "url", page.URL(), "error", err)
		return false
	}

	input, ok := extract.FirstPresent(doc, s.Inputs)
	if !ok {
		slog.Debug("message input not found", "url", page.URL())
		return false
	}
	if err := page.Fill(ctx, input.Selector, s.Message); err != nil {
		slog.Warn("fill message failed", "url", page.URL(), "selector", input.Selector, "error", err)
		return false
	}

	// The fill may have enabled a previously hidden control.
	if doc, err = page.Document(ctx); err != nil {
		slog.Warn("interaction snapshot failed", "url", page.URL(), "error", err)
		return false
	}
	submit, ok := extract.FirstPresent(doc, s.Submits)
	if !ok {
		slog.Debug("submit control not found", "url", page.URL())
		return false
	}

	if err := page.Press(ctx, submit.Selector); err != nil {
		slog.Warn("submit press failed", "url", page.URL(), "selector", submit.Selector, "error", err)
		return false
	}
	if !s.settle(ctx) {
		return false
	}
	if err := page.Click(ctx, submit.Selector); err != nil {
		slog.Warn("submit click failed", "url", page.URL(), "selector", submit.Selector, "error", err)
		return false
	}
	if !s.settle(ctx) {
		return false
	}

	slog.Info("message sent", "url", page.URL())
	return true
}

func (s *Script) settle(ctx context.Context) bool {
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
