package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailcannon/mailcannon/internal/api"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Email template commands",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List system and user templates",
	RunE:  runTemplatesList,
}

var templatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user template",
	RunE:  runTemplatesAdd,
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a user template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesDelete,
}

var (
	templateCategory string
	templateSearch   string
	templateName     string
	templateSubject  string
	templateBodyFile string
)

func init() {
	templatesListCmd.Flags().StringVar(&templateCategory, "category", "", "Filter by category")
	templatesListCmd.Flags().StringVar(&templateSearch, "search", "", "Filter by name")

	templatesAddCmd.Flags().StringVar(&templateName, "name", "", "Template name")
	templatesAddCmd.Flags().StringVar(&templateSubject, "subject", "", "Email subject")
	templatesAddCmd.Flags().StringVar(&templateBodyFile, "body-file", "", "File with the HTML body")
	templatesAddCmd.MarkFlagRequired("name")
	templatesAddCmd.MarkFlagRequired("subject")
	templatesAddCmd.MarkFlagRequired("body-file")

	templatesCmd.AddCommand(templatesListCmd, templatesAddCmd, templatesDeleteCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	list, err := e.client.ListTemplates(cmd.Context(), templateCategory, templateSearch)
	if err != nil {
		return e.authErr(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCATEGORY\tNAME\tSUBJECT")
	for _, t := range list.SystemTemplates {
		fmt.Fprintf(w, "%d\tsystem\t%s\t%s\t%s\n", t.ID, t.Category, t.Name, t.Subject)
	}
	for _, t := range list.UserTemplates {
		fmt.Fprintf(w, "%d\tuser\t%s\t%s\t%s\n", t.ID, t.Category, t.Name, t.Subject)
	}
	return w.Flush()
}

func runTemplatesAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	body, err := os.ReadFile(templateBodyFile)
	if err != nil {
		return fmt.Errorf("failed to read body file: %w", err)
	}

	req := api.TemplateRequest{
		Name:        templateName,
		Subject:     templateSubject,
		HTMLContent: string(body),
	}
	if err := e.client.CreateTemplate(cmd.Context(), req); err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Template %q created\n", templateName)
	return nil
}

func runTemplatesDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid template id %q", args[0])
	}

	if err := e.client.DeleteTemplate(cmd.Context(), id); err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Template %d deleted\n", id)
	return nil
}
