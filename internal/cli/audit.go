package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaizen-app/kaizen/internal/daemon"
)

func init() {
	rootCmd.AddCommand(auditCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check every user's balance against their transaction history",
	Long: `Sweep all users and compare each stored balance with the signed sum of
the user's transactions. A clean ledger prints nothing and exits 0; any
drift is printed and the command exits 1.`,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	svc, err := daemon.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	drifts, err := svc.Ledger.Audit(cmd.Context())
	if err != nil {
		return err
	}
	if len(drifts) == 0 {
		fmt.Println("ledger clean")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tBALANCE\tSUM")
	for _, d := range drifts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.UserID, d.Balance, d.Sum)
	}
	w.Flush()
	return fmt.Errorf("%d user(s) drifted from the ledger", len(drifts))
}
