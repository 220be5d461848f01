// internal/app/system/assignment/board.go
package assignment

import (
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/domain/models"
)

// BoardSlot is one cell as the assignment table shows it.
type BoardSlot struct {
	Index      int    `json:"index"`
	Disabled   bool   `json:"disabled"`
	WorkerID   string `json:"worker_id,omitempty"`
	WorkerName string `json:"worker_name,omitempty"`
}

// BoardSite is a site together with its derived status and resolved slots.
type BoardSite struct {
	models.Site
	Status models.AssignmentStatus `json:"status"`
	Cells  []BoardSlot             `json:"cells"`
}

// Board is a consistent snapshot of the whole day.
type Board struct {
	Date    string          `json:"date"`
	Sites   []BoardSite     `json:"sites"`
	Workers []models.Worker `json:"workers"`
}

// Board returns a snapshot of every site and the roster taken under one read lock.
func (e *Engine) Board() Board {
	b := Board{Date: e.scope.Date}
	_ = e.scope.View(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		b.Workers = workers.List()
		for _, s := range sites.List() {
			bs := BoardSite{Site: s, Status: StatusOf(s), Cells: make([]BoardSlot, len(s.Slots))}
			for i, wid := range s.Slots {
				cell := BoardSlot{Index: i, Disabled: !s.Active(i)}
				if wid != nil {
					cell.WorkerID = wid.Hex()
					if w, ok := workers.Get(*wid); ok {
						cell.WorkerName = w.Name
					}
				}
				bs.Cells[i] = cell
			}
			b.Sites = append(b.Sites, bs)
		}
		return nil
	})
	return b
}
