package journal

import (
	"io"
	"text/template"
	"time"
)

var reportFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(reportFuncs).Parse(ReportOrgTemplate))

// WriteReportOrg renders the leaderboard and per-agent summaries as an
// org-mode document.
func WriteReportOrg(w io.Writer, s *State) error {
	return reportTmpl.Execute(w, s)
}

const ReportOrgTemplate = `* ARENA: cycle {{.CurrentCycle}}
:PROPERTIES:
:CYCLE:     {{.CurrentCycle}}
:AGENTS:    {{len .Agents}}
:CREATED:   [{{(orTime .GeneratedAt).Format "2006-01-02 Mon 15:04"}}]
:END:

** Leaderboard
| Rank | Agent | Portfolio | Return % | Trades | Win % | Positions |
|------+-------+-----------+----------+--------+-------+-----------|
{{- range $i, $a := .Agents }}
| {{inc $i}} | {{$a.Name}} | {{printf "%.2f" $a.PortfolioValue}} | {{printf "%.2f" $a.TotalReturnPct}} | {{$a.TotalTrades}} | {{printf "%.1f" $a.WinRate}} | {{len $a.Positions}} |
{{- end }}
{{- range .Agents }}

** {{.Name}}
:PROPERTIES:
:AGENT_ID:     {{.ID}}
:START_BAL:    {{printf "%.2f" .StartingCapital}}
:CASH:         {{printf "%.2f" .CashBalance}}
:REALIZED_PL:  {{printf "%.2f" .RealizedPL}}
:UNREALIZED:   {{printf "%.2f" .UnrealizedPL}}
:WINS:         {{.Wins}}
:LOSSES:       {{.Losses}}
:END:
{{- if .Positions }}
| Instrument | Side | Quantity | Entry | Mark | Unrealized |
|------------+------+----------+-------+------+------------|
{{- range .Positions }}
| {{.Instrument}} | {{.Side}} | {{printf "%.6f" .Quantity}} | {{printf "%.2f" .EntryPrice}} | {{printf "%.2f" .MarkPrice}} | {{printf "%.2f" .UnrealizedPL}} |
{{- end }}
{{- else }}
- No open positions
{{- end }}
{{- end }}

{{- if .MissedCheckpoints }}

** Missed checkpoints
{{- range .MissedCheckpoints }}
- cycle {{.}}
{{- end }}
{{- end }}
`
