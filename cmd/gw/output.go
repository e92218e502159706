package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/client"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
	"github.com/alfredjeanlab/gatewarden/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// renderEvalStatus colors an evaluation or brief status for terminal output.
func renderEvalStatus(status string) string {
	switch status {
	case string(model.EvalPassed):
		return ui.RenderPass(status)
	case string(model.EvalFailed):
		return ui.RenderFail(status)
	case string(model.EvalPartial), string(model.EvalNotEvaluated):
		return ui.RenderWarn(status)
	default:
		return status
	}
}

func renderResult(code model.ResultCode) string {
	switch code {
	case model.ResultPass, model.ResultException:
		return ui.RenderPass(string(code))
	case model.ResultFail:
		return ui.RenderFail(string(code))
	case model.ResultWarn:
		return ui.RenderWarn(string(code))
	default:
		return ui.RenderMuted(string(code))
	}
}

func printProjectTable(p *model.Project) {
	fmt.Printf("ID:          %s\n", p.ID)
	fmt.Printf("Name:        %s\n", p.Name)
	fmt.Printf("Environment: %s\n", p.CurrentEnvironment)
	fmt.Printf("AI Enabled:  %t\n", p.AIEnabled)
	if len(p.Attestations) > 0 {
		parts := make([]string, 0, len(p.Attestations))
		for k, v := range p.Attestations {
			if v == nil {
				parts = append(parts, k+"=unset")
			} else {
				parts = append(parts, fmt.Sprintf("%s=%t", k, *v))
			}
		}
		fmt.Printf("Attested:    %s\n", strings.Join(parts, ", "))
	}
	for k, v := range p.ScanScores {
		fmt.Printf("Score:       %s=%.1f\n", k, v)
	}
	fmt.Printf("Created At:  %s\n", formatTime(p.CreatedAt))
	fmt.Printf("Updated At:  %s\n", formatTime(p.UpdatedAt))
}

func printProjectListTable(projects []*model.Project) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENVIRONMENT\tAI")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", p.ID, p.Name, p.CurrentEnvironment, p.AIEnabled)
	}
	w.Flush()
	fmt.Printf("\n%d projects\n", len(projects))
}

func printEvaluationTable(ev *model.GateEvaluation) {
	fmt.Printf("Evaluation:  %s\n", ev.EvaluationID)
	fmt.Printf("Project:     %s\n", ev.ProjectID)
	fmt.Printf("Gate:        %s (%s -> %s)\n", ev.GateID, ev.SourceEnvironment, ev.TargetEnvironment)
	fmt.Printf("Status:      %s\n", renderEvalStatus(string(ev.Status)))
	fmt.Printf("Evaluated:   %s\n", formatTime(ev.EvaluatedAt))
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tTYPE\tREQUIRED\tRESULT\tMESSAGE")
	for _, r := range ev.Results {
		msg := r.Message
		if r.ExceptionID != "" {
			msg = msg + " (exception " + r.ExceptionID + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", r.RuleID, r.RuleType, r.Required, renderResult(r.Result), msg)
	}
	w.Flush()
}

func printEvaluationListTable(evals []*model.GateEvaluation) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGATE\tSTATUS\tEVALUATED")
	for _, ev := range evals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.EvaluationID, ev.GateID, renderEvalStatus(string(ev.Status)), formatTime(ev.EvaluatedAt))
	}
	w.Flush()
	fmt.Printf("\n%d evaluations\n", len(evals))
}

func printBriefTable(b *client.Brief) {
	fmt.Printf("Project:     %s\n", b.ProjectID)
	fmt.Printf("Stage:       %s\n", b.CurrentStage)
	if b.NextStage != "" {
		fmt.Printf("Next Stage:  %s\n", b.NextStage)
	}
	fmt.Printf("Gate Status: %s\n", renderEvalStatus(b.GateStatus))
	if b.ReadyToElevate {
		fmt.Printf("Ready:       %s\n", ui.RenderPass("yes"))
	} else {
		fmt.Printf("Ready:       %s (%d blockers)\n", ui.RenderFail("no"), b.BlockersCount)
	}
	if len(b.ResolvedRequirements) > 0 {
		fmt.Printf("Resolved:    %s\n", strings.Join(b.ResolvedRequirements, ", "))
	}
	if b.LastEvaluatedAt != nil {
		fmt.Printf("Evaluated:   %s\n", formatTime(*b.LastEvaluatedAt))
	}
	if len(b.OpenTaskPackets) > 0 {
		fmt.Println()
		printPacketListTable(b.OpenTaskPackets)
	}
}

func printPacketTable(tp *model.TaskPacket) {
	fmt.Printf("ID:          %s\n", tp.TaskPacketID)
	fmt.Printf("Project:     %s\n", tp.ProjectID)
	fmt.Printf("Rule:        %s (%s)\n", tp.RuleID, tp.RuleType)
	fmt.Printf("Status:      %s\n", renderPacketStatus(tp.Status))
	if tp.AgentID != "" {
		fmt.Printf("Agent:       %s\n", tp.AgentID)
	}
	if tp.FixGuidance != "" {
		fmt.Printf("Guidance:    %s\n", tp.FixGuidance)
	}
	if len(tp.FindingIDs) > 0 {
		fmt.Printf("Findings:    %s\n", strings.Join(tp.FindingIDs, ", "))
	}
	if tp.FixSummary != "" {
		fmt.Printf("Fix:         %s\n", tp.FixSummary)
	}
	if tp.CommitRef != "" {
		fmt.Printf("Commit:      %s\n", tp.CommitRef)
	}
	if tp.ClaimedAt != nil {
		fmt.Printf("Claimed At:  %s\n", formatTime(*tp.ClaimedAt))
	}
	if tp.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", formatTime(*tp.CompletedAt))
	}
	fmt.Printf("Created At:  %s\n", formatTime(tp.CreatedAt))
}

func renderPacketStatus(s model.PacketStatus) string {
	switch s {
	case model.PacketCompleted:
		return ui.RenderPass(string(s))
	case model.PacketFailed:
		return ui.RenderFail(string(s))
	case model.PacketInProgress:
		return ui.RenderWarn(string(s))
	default:
		return string(s)
	}
}

func printPacketListTable(packets []*model.TaskPacket) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tRULE\tSTATUS\tAGENT")
	for _, tp := range packets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tp.TaskPacketID, tp.ProjectID, tp.RuleID, renderPacketStatus(tp.Status), tp.AgentID)
	}
	w.Flush()
	fmt.Printf("\n%d task packets\n", len(packets))
}

func printTimelineTable(events []*model.TimelineEvent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tEVENT\tACTOR\tSUMMARY")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatTime(ev.Timestamp), ev.EventType, ev.Actor, ev.Summary)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(events))
}

func printApprovalTable(view *client.ApprovalView) {
	ar := view.ApprovalRequest
	fmt.Printf("ID:          %s\n", ar.ApprovalRequestID)
	fmt.Printf("Project:     %s\n", ar.ProjectID)
	fmt.Printf("Type:        %s\n", ar.RequestType)
	fmt.Printf("Status:      %s\n", renderApprovalStatus(ar.Status))
	if ar.ExceptionID != "" {
		fmt.Printf("Exception:   %s\n", ar.ExceptionID)
	}
	if ar.DecidedBy != "" {
		fmt.Printf("Decided By:  %s\n", ar.DecidedBy)
	}
	if ar.DecisionReason != "" {
		fmt.Printf("Reason:      %s\n", ar.DecisionReason)
	}
	fmt.Printf("Expires At:  %s\n", formatTime(ar.ExpiresAt))
	fmt.Printf("Created At:  %s\n", formatTime(ar.CreatedAt))
	if len(view.Comments) > 0 {
		fmt.Printf("\nComments (%d):\n", len(view.Comments))
		for _, c := range view.Comments {
			fmt.Printf("  [%s] %s: %s\n", formatTime(c.CreatedAt), c.Author, c.Content)
		}
	}
}

func renderApprovalStatus(s model.ApprovalStatus) string {
	switch s {
	case model.ApprovalApproved:
		return ui.RenderPass(string(s))
	case model.ApprovalRejected, model.ApprovalExpired:
		return ui.RenderFail(string(s))
	case model.ApprovalNeedsInfo:
		return ui.RenderWarn(string(s))
	default:
		return string(s)
	}
}

func printExceptionTable(exc *model.Exception) {
	fmt.Printf("ID:          %s\n", exc.ExceptionID)
	fmt.Printf("Project:     %s\n", exc.ProjectID)
	fmt.Printf("Rule Type:   %s\n", exc.RuleType)
	fmt.Printf("Contest:     %s\n", exc.ContestType)
	fmt.Printf("Status:      %s\n", string(exc.Status))
	fmt.Printf("Rationale:   %s\n", exc.Rationale)
	if len(exc.ApprovedBy) > 0 {
		fmt.Printf("Approved By: %s\n", strings.Join(exc.ApprovedBy, ", "))
	}
	if exc.ExpiresAt != nil {
		fmt.Printf("Expires At:  %s\n", formatTime(*exc.ExpiresAt))
	}
}

func printGateListTable(gates []*model.PromotionGate) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GATE\tSOURCE\tTARGET\tMODE\tRULES")
	for _, g := range gates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", g.GateID, g.SourceEnvironment, g.TargetEnvironment, g.ApprovalMode, len(g.Rules))
	}
	w.Flush()
	fmt.Printf("\n%d gates\n", len(gates))
}

func printGateTable(g *model.PromotionGate) {
	fmt.Printf("Gate:        %s\n", g.GateID)
	fmt.Printf("Promotion:   %s -> %s\n", g.SourceEnvironment, g.TargetEnvironment)
	fmt.Printf("Mode:        %s\n", g.ApprovalMode)
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tTYPE\tREQUIRED\tAI-ONLY\tTHRESHOLD")
	for _, r := range g.Rules {
		threshold := "-"
		if r.Threshold != nil {
			threshold = fmt.Sprintf("%.1f", *r.Threshold)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", r.RuleID, r.RuleType, r.Required, r.AIOnly, threshold)
	}
	w.Flush()
}

func printRulesTable(infos []rules.Info) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tTHRESHOLD\tPARAMS\tAI-ONLY\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%s\n", info.Type, info.NeedsThreshold, info.NeedsParams, info.AIOnly, info.Description)
	}
	w.Flush()
}

func printFindingListTable(findings []*model.Finding) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tSTATUS\tDETECTED\tTITLE")
	for _, f := range findings {
		status := string(f.Status)
		if f.Status == model.FindingResolved {
			status = ui.RenderPass(status)
		} else if f.Severity == model.SeverityCritical {
			status = ui.RenderFail(status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", f.FindingID, f.Severity, f.Category, status, formatTime(f.DetectedAt), f.Title)
	}
	w.Flush()
	fmt.Printf("\n%d findings\n", len(findings))
}
