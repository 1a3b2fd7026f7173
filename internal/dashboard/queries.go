package dashboard

import (
	"log"

	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/obra"
)

// overviewRow is one line of the index page.
type overviewRow struct {
	Summary  obra.Summary
	Progress fases.Progress
}

// overview joins the record list with each record's phase progress.
// A record whose progress cannot be read still gets a row.
func overview(store *obra.Store, tracker *fases.Tracker) []overviewRow {
	list := store.List()
	rows := make([]overviewRow, 0, len(list))
	for _, s := range list {
		p, err := tracker.Progress(s.NombreObra)
		if err != nil {
			log.Printf("dashboard: progress %s: %v", s.NombreObra, err)
			p = fases.Progress{Obra: s.NombreObra, Total: fases.Total}
		}
		rows = append(rows, overviewRow{Summary: s, Progress: p})
	}
	return rows
}
