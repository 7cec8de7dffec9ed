package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/marmos91/dittovec/pkg/aggregate"
	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/marmos91/dittovec/pkg/orchestrator"
)

// storeList renders registered stores.
type storeList []orchestrator.StoreInfo

func (l storeList) Headers() []string {
	return []string{"NAME", "CATEGORY", "KIND", "STATE", "FULL SCAN", "CAPABILITIES", "LAST ERROR"}
}

func (l storeList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		caps := make([]string, len(s.Capabilities))
		for i, c := range s.Capabilities {
			caps[i] = string(c)
		}
		rows = append(rows, []string{
			s.Name,
			string(s.Category),
			s.Kind,
			s.State,
			output.Bool(s.FullScan),
			output.Dash(strings.Join(caps, ",")),
			output.Dash(s.LastError),
		})
	}
	return rows
}

// outcomeList renders per-store outcomes of add and status.
type outcomeList []handlers.OutcomeView

func (l outcomeList) Headers() []string {
	return []string{"STORE", "KIND", "OK", "CODE", "DURATION MS", "DETAILS"}
}

func (l outcomeList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, o := range l {
		details := o.Message
		if o.OK {
			details = statusDetails(o.Status)
		}
		rows = append(rows, []string{
			o.Store,
			output.Dash(o.Kind),
			output.Bool(o.OK),
			output.Dash(o.Code),
			output.Float(o.DurationMs),
			output.Dash(details),
		})
	}
	return rows
}

// statusDetails flattens a status map into sorted key=value pairs. Keys the
// table already shows are skipped.
func statusDetails(st map[string]any) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(st)) {
		switch k {
		case "type", "category":
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, st[k]))
	}
	return strings.Join(parts, " ")
}

// hitList renders a merged federated ranking.
type hitList []aggregate.Hit

func (l hitList) Headers() []string {
	return []string{"RANK", "STORE", "ID", "DISTANCE"}
}

func (l hitList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for i, h := range l {
		rows = append(rows, []string{fmt.Sprint(i + 1), h.Store, h.ID, output.Float(h.Distance)})
	}
	return rows
}

// resultList renders per-store search results, one row per candidate.
type resultList []handlers.OutcomeView

func (l resultList) Headers() []string {
	return []string{"STORE", "RANK", "ID", "DISTANCE", "ERROR"}
}

func (l resultList) Rows() [][]string {
	var rows [][]string
	for _, o := range l {
		if !o.OK {
			rows = append(rows, []string{o.Store, "-", "-", "-", o.Code + ": " + o.Message})
			continue
		}
		if len(o.Results) == 0 {
			rows = append(rows, []string{o.Store, "-", "-", "-", "-"})
			continue
		}
		for i, c := range o.Results {
			rows = append(rows, []string{o.Store, fmt.Sprint(i + 1), c.ID, output.Float(c.Distance), "-"})
		}
	}
	return rows
}
