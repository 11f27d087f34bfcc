package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/models"
)

var choresCmd = &cobra.Command{
	Use:   "chores",
	Short: "Manage the selected child's chores",
}

func init() {
	choresCmd.PersistentFlags().String("routine", "morning", "routine to show (morning or evening)")
	choresCmd.AddCommand(choresListCmd, choresAddCmd, choresDoneCmd, choresRemoveCmd, choresResetCmd)
	choresAddCmd.Flags().Float64("reward", 0.10, "reward amount")
	choresAddCmd.Flags().String("description", "", "chore description")
}

// choreApp builds the app and applies the routine flag.
func choreApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, err
	}

	routine, _ := cmd.Flags().GetString("routine")
	if err := a.rec.SetRoutine(cmd.Context(), models.RoutineType(routine)); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// findChild resolves a child by name (case-insensitive) or id.
func findChild(a *app, key string) (*models.Child, error) {
	for _, c := range a.rec.Children() {
		if c.ID == key || strings.EqualFold(c.Name, key) {
			child := c
			return &child, nil
		}
	}
	return nil, fmt.Errorf("no child matching %q", key)
}

// findChore resolves a chore in the displayed list by title or id.
func findChore(a *app, key string) (*models.Chore, error) {
	for _, c := range a.rec.Chores() {
		if c.ID == key || strings.EqualFold(c.Title, key) {
			chore := c
			return &chore, nil
		}
	}
	return nil, fmt.Errorf("no chore matching %q", key)
}

var choresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the routine's chores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := choreApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		child := a.rec.SelectedChild()
		if child == nil {
			fmt.Println("No child selected")
			return nil
		}
		fmt.Printf("%s — %s routine — balance %s\n", child.Name, a.rec.Routine(), formatAmount(child.Balance))

		chores := a.rec.Chores()
		if len(chores) == 0 {
			fmt.Println("No chores in this routine")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DONE\tTITLE\tREWARD\tID")
		for _, c := range chores {
			done := " "
			if c.Completed {
				done = "x"
			}
			fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\n", done, c.Title, formatAmount(c.RewardAmount), c.ID)
		}
		return w.Flush()
	},
}

var choresAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a custom chore to the routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := choreApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		reward, _ := cmd.Flags().GetFloat64("reward")
		description, _ := cmd.Flags().GetString("description")
		chore, err := a.rec.CreateChore(cmd.Context(), backend.ChoreFields{
			Title:        args[0],
			Description:  description,
			RewardAmount: reward,
			RoutineType:  a.rec.Routine(),
			IsCustom:     true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %q (%s)\n", chore.Title, formatAmount(chore.RewardAmount))
		return nil
	},
}

var choresDoneCmd = &cobra.Command{
	Use:   "done <title or id>",
	Short: "Toggle a chore's completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := choreApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		chore, err := findChore(a, args[0])
		if err != nil {
			return err
		}
		result, err := a.rec.ToggleChore(cmd.Context(), chore.ID)
		if err != nil {
			return err
		}
		if result.Completed {
			fmt.Printf("Done! %q earned %s — balance %s\n",
				result.Chore.Title, formatAmount(result.RewardAmount), formatAmount(result.Balance))
		} else {
			fmt.Printf("Unmarked %q — balance %s\n", result.Chore.Title, formatAmount(result.Balance))
		}
		return nil
	},
}

var choresRemoveCmd = &cobra.Command{
	Use:   "remove <title or id>",
	Short: "Delete a chore",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := choreApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		chore, err := findChore(a, args[0])
		if err != nil {
			return err
		}
		if err := a.rec.DeleteChore(cmd.Context(), chore.ID); err != nil {
			return err
		}
		fmt.Printf("Removed %q\n", chore.Title)
		return nil
	},
}

var choresResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear completion on the routine's chores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := choreApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.rec.ResetChores(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Reset %s chores\n", a.rec.Routine())
		return nil
	},
}

var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem the selected child's balance (resets it to zero)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		child := a.rec.SelectedChild()
		if child == nil {
			return fmt.Errorf("no child selected")
		}
		before := child.Balance

		if _, err := a.rec.RedeemBalance(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Redeemed %s for %s\n", formatAmount(before), child.Name)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <name>",
	Short: "Set your display name and optional gender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		gender, _ := cmd.Flags().GetString("gender")
		if err := a.rec.SetProfile(cmd.Context(), args[0], models.Gender(gender)); err != nil {
			return err
		}
		fmt.Println("Profile updated")
		return nil
	},
}

func init() {
	profileCmd.Flags().String("gender", "", "gender selection (boy or girl)")
}
