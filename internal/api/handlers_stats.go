package api

import (
	"net/http"
	"sort"

	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/parser"
)

type layoutInfo struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
	Mode    string   `json:"mode"`
	Tags    []string `json:"tags"`
	Labels  []string `json:"labels,omitempty"`
}

func (s *Server) handleLayouts(w http.ResponseWriter, r *http.Request) {
	layouts := extract.Layouts()
	out := make([]layoutInfo, 0, len(layouts))
	for _, l := range layouts {
		info := layoutInfo{
			Name:    l.Name,
			Domains: l.Domains,
			Mode:    l.Mode.String(),
			Tags:    l.Tags,
		}
		for _, rule := range l.Rules {
			if rule.Label != "" {
				info.Labels = append(info.Labels, rule.Label)
			}
		}
		out = append(out, info)
	}

	formats := make([]string, 0, len(parser.SupportedExtensions))
	for ext := range parser.SupportedExtensions {
		formats = append(formats, ext)
	}
	sort.Strings(formats)

	writeJSON(w, http.StatusOK, map[string]any{
		"layouts": out,
		"formats": formats,
	})
}

func (s *Server) handleLedgerStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "ledger stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": "1h",
		"stats":  s.stats.Snapshot(),
	})
}
