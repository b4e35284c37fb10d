package router

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteInfo writes a table of the open ports and their counters to w.
func (r *Router) WriteInfo(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "PORT\tIN\tOUT\tRX HANDLER\tTX HANDLER")
	for _, s := range r.PortStats() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.Port, s.RxCount, s.TxCount, yesNo(s.HasRx), yesNo(s.HasTx))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t\t\n", r.NumRxPackets(), r.NumTxPackets())

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}

	return "NO"
}
