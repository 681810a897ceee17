package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joinboard/join/pkg/models"
)

// completeTaskIDs lists task ids with their titles as descriptions.
func completeTaskIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || Tasks == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, task := range Tasks.LoadAll(ctxOf(cmd)) {
		if toComplete == "" || strings.HasPrefix(task.ID, toComplete) {
			ids = append(ids, task.ID+"\t"+task.Title)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeStages lists the board columns.
func completeStages(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(models.Stages))
	for _, s := range models.Stages {
		out = append(out, string(s)+"\t"+s.Label())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completePriorities lists the task priorities.
func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"urgent\tNeeds attention first",
		"medium\tDefault",
		"low\tWhen there is time",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeCategories lists the task categories.
func completeCategories(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, string(c))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeContactNames lists contact names for --assign.
func completeContactNames(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if Contacts == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, c := range Contacts.LoadAll(ctxOf(cmd)) {
		if toComplete == "" || strings.HasPrefix(strings.ToLower(c.Name), strings.ToLower(toComplete)) {
			names = append(names, c.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
