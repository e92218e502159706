package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment <approval-request-id> <content>",
	Short:   "Comment on an approval request",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		commentType, _ := cmd.Flags().GetString("type")
		needsInfo, _ := cmd.Flags().GetBool("needs-info")

		comment, err := gwClient.AddComment(context.Background(), args[0], &client.CommentRequest{
			Author:       actor,
			AuthorRole:   role,
			Content:      args[1],
			CommentType:  commentType,
			SetNeedsInfo: needsInfo,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(comment)
		}
		fmt.Printf("comment %d added\n", comment.ID)
		return nil
	},
}

func init() {
	commentCmd.Flags().String("role", "", "author role (e.g. security_lead)")
	commentCmd.Flags().String("type", "", "comment type (note, question, evidence, decision_note)")
	commentCmd.Flags().Bool("needs-info", false, "move a pending request to needs_info")
}
