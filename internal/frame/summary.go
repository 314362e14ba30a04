package frame

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Row is one line of the fit report.
type Row struct {
	Column string  `json:"column"`
	Cost   float64 `json:"cost"`
	Kind   string  `json:"kind"`
	Fit    string  `json:"fit"`
	DOF    int     `json:"dof"`
}

// Summary reports up to limit results per column, columns in sorted order
// and results in ascending cost. A limit of zero or less reports all.
func (f *Frame) Summary(limit int) []Row {
	var rows []Row
	for _, column := range f.names {
		ranked, _ := f.Ranking(column, limit)
		for _, r := range ranked {
			rows = append(rows, Row{
				Column: column,
				Cost:   r.Cost(),
				Kind:   r.Kind(),
				Fit:    r.String(),
				DOF:    r.DOF(),
			})
		}
	}
	return rows
}

// WriteTable renders rows as an aligned text table.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tCOST\tKIND\tDOF\tFIT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.Column, strconv.FormatFloat(r.Cost, 'g', 6, 64), r.Kind, r.DOF, r.Fit)
	}
	return tw.Flush()
}
