package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fennwick/chorecoins/internal/config"
)

var childrenCmd = &cobra.Command{
	Use:   "children",
	Short: "Manage children",
}

func init() {
	childrenCmd.AddCommand(childrenListCmd, childrenAddCmd, childrenSelectCmd, childrenRemoveCmd)
	childrenAddCmd.Flags().String("avatar", "", "avatar image URL")
}

var childrenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List children and their balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		children := a.rec.Children()
		if len(children) == 0 {
			fmt.Println("No children yet. Add one with: chorecoins children add <name>")
			return nil
		}

		selected := a.rec.SelectedChild()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBALANCE\tCHORES\tID")
		for _, c := range children {
			marker := ""
			if selected != nil && c.ID == selected.ID {
				marker = " *"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\n", c.Name, marker, formatAmount(c.Balance), len(c.Chores), c.ID)
		}
		return w.Flush()
	},
}

var childrenAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a child (seeds the default chore set)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		avatar, _ := cmd.Flags().GetString("avatar")
		child, err := a.rec.CreateChild(cmd.Context(), args[0], avatar)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%d chores seeded)\n", child.Name, len(child.Chores))
		return nil
	},
}

var childrenSelectCmd = &cobra.Command{
	Use:   "select <name or id>",
	Short: "Select which child's chores are shown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		child, err := findChild(a, args[0])
		if err != nil {
			return err
		}
		if err := a.rec.SelectChild(cmd.Context(), child.ID); err != nil {
			return err
		}
		if err := config.WriteSelectedChild(child.ID); err != nil {
			return err
		}
		fmt.Println("Selected", child.Name)
		return nil
	},
}

var childrenRemoveCmd = &cobra.Command{
	Use:   "remove <name or id>",
	Short: "Delete a child and all their chores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		child, err := findChild(a, args[0])
		if err != nil {
			return err
		}
		if err := a.rec.DeleteChild(cmd.Context(), child.ID); err != nil {
			return err
		}
		// Keep the persisted selection in step with the fallback the
		// reconciler applied.
		if sel := a.rec.SelectedChild(); sel != nil {
			if err := config.WriteSelectedChild(sel.ID); err != nil {
				return err
			}
		} else if err := config.RemoveSelectedChild(); err != nil {
			return err
		}
		fmt.Println("Removed", child.Name)
		return nil
	},
}
