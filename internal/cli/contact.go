package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/pkg/models"
)

var (
	contactJSON        bool
	contactName        string
	contactEmail       string
	contactPhone       string
	contactInteractive bool
)

// contactRow exposes the id, which the stored document omits.
type contactRow struct {
	ID string `json:"id"`
	models.Contact
}

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts grouped by first letter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := loadContacts(ctxOf(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if contactJSON {
			rows := make([]contactRow, 0, len(contacts))
			for _, c := range contacts {
				rows = append(rows, contactRow{ID: c.ID, Contact: c})
			}
			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting contacts as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		if len(contacts) == 0 {
			fmt.Fprintln(out, "No contacts.")
			return nil
		}
		for _, g := range Contacts.Grouped() {
			fmt.Fprintln(out, headerStyle.Render(g.Letter))
			for _, c := range g.Contacts {
				fmt.Fprintf(out, "  %s %-24s %-28s %s\n",
					badgeStyle(c.Color).Render(fmt.Sprintf(" %-2s ", c.Initials)), c.Name, c.Email, c.Phone)
			}
		}
		return nil
	},
}

var contactAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a contact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadContacts(ctxOf(cmd)); err != nil {
			return err
		}
		draft := core.ContactDraft{Name: contactName, Email: contactEmail, Phone: contactPhone}
		if contactInteractive {
			var err error
			if draft, err = runContactForm(); err != nil {
				return err
			}
		}

		c, err := Contacts.Create(ctxOf(cmd), draft)
		if err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("%s: %s", verr.Field, verr.Message)
			}
			return fmt.Errorf("creating contact: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created contact %s (%s)\n", c.Name, c.ID)
		return nil
	},
}

var contactDeleteCmd = &cobra.Command{
	Use:               "delete <id-or-name>",
	Short:             "Delete a contact",
	Long:              "Delete a contact. Tasks keep their embedded copy of it.",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeContactNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadContacts(ctxOf(cmd)); err != nil {
			return err
		}
		c, ok := Contacts.Get(args[0])
		if !ok {
			if c, ok = Contacts.FindByName(args[0]); !ok {
				return fmt.Errorf("contact %s not found", args[0])
			}
		}
		if err := Contacts.Delete(ctxOf(cmd), c.ID); err != nil {
			return fmt.Errorf("deleting contact: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted contact %s\n", c.Name)
		return nil
	},
}

func init() {
	contactListCmd.Flags().BoolVar(&contactJSON, "json", false, "Output contacts as JSON")

	contactAddCmd.Flags().StringVar(&contactName, "name", "", "Full name")
	contactAddCmd.Flags().StringVar(&contactEmail, "email", "", "Email address")
	contactAddCmd.Flags().StringVar(&contactPhone, "phone", "", "Phone number")
	contactAddCmd.Flags().BoolVarP(&contactInteractive, "interactive", "i", false, "Fill in the contact with a form")

	contactCmd.AddCommand(contactListCmd, contactAddCmd, contactDeleteCmd)
	rootCmd.AddCommand(contactCmd)
}
