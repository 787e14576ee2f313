package content

import (
	"log/slog"

	"github.com/codenitrr/codelution/dom"
)

// hostID marks the injected panel host so Ensure stays idempotent across
// repeated toggles.
const hostID = "codelution-panel-host"

// domSurface renders the panel as an injected host element wrapping an
// iframe. A page reload drops the whole subtree, which is why Ensure runs on
// every show path.
type domSurface struct {
	win      *dom.Window
	panelURL string
	logger   *slog.Logger
}

func (s *domSurface) Ensure() {
	doc := s.win.Document()
	if doc.Query("#" + hostID) != nil {
		return
	}
	body := doc.Body()
	if body == nil {
		s.logger.Debug("content: no body, panel host not mounted")
		return
	}

	host := doc.CreateElement("div")
	host.SetAttr("id", hostID)
	host.SetAttr("style", "display:none")

	frame := doc.CreateElement("iframe")
	frame.SetAttr("src", s.panelURL)
	frame.SetAttr("id", hostID+"-frame")
	host.AppendChild(frame)

	body.AppendChild(host)
}

func (s *domSurface) Show() {
	if host := s.win.Document().Query("#" + hostID); host != nil {
		host.SetAttr("style", "display:block")
	}
}

func (s *domSurface) Hide() {
	if host := s.win.Document().Query("#" + hostID); host != nil {
		host.SetAttr("style", "display:none")
	}
}
