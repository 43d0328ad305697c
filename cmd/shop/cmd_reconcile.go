package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/shop/internal/server"
)

var pruneFlag bool

// shop reconcile
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report login names present in only one of the customer and identity stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		report, err := app.Reconcile(ctx, pruneFlag)
		if err != nil {
			return err
		}
		if report.Empty() {
			fmt.Println("Stores are consistent.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LOGIN NAME\tPROBLEM")
		fmt.Fprintln(w, "----------\t-------")
		for _, n := range report.CustomersWithoutIdentity {
			fmt.Fprintf(w, "%s\tcustomer without identity\n", n)
		}
		for _, n := range report.IdentitiesWithoutCustomer {
			problem := "identity without customer"
			if pruneFlag {
				problem += " (pruned)"
			}
			fmt.Fprintf(w, "%s\t%s\n", n, problem)
		}
		return w.Flush()
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&pruneFlag, "prune", false, "Remove identities that have no customer")
}
