package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
)

const (
	sectionHeadingBudget = 60
	summaryTimeLayout    = "Jan 2, 2006 15:04 MST"

	defaultExecutiveSummary = "This intelligence brief consolidates findings for the engagement. " +
		"Ask questions to expand the analysis; each answer adds a findings section and refreshes the recommendations below."

	opportunityBullet = "Opportunity: the current signals support expanding the engagement footprint."
	riskBullet        = "Risk: conclusions are preliminary until corroborated by additional evidence."
	noEvidenceBullet  = "No processed evidence was supplied for this turn."
)

var defaultNextSteps = []string{
	"Review the executive summary with the account team.",
	"Upload supporting evidence for deeper analysis.",
	"Ask a question to generate the first findings section.",
}

// DefaultReport is the report attached to every freshly created task.
func DefaultReport(taskTitle string, at time.Time) domain.Report {
	return domain.Report{
		Title:            taskTitle + " — Intelligence Brief",
		ExecutiveSummary: defaultExecutiveSummary,
		Sections:         []domain.Section{},
		Recommendations:  []string{},
		NextSteps:        append([]string(nil), defaultNextSteps...),
		LastUpdated:      at,
		RevisionHistory:  []domain.Revision{},
	}
}

// BriefUseCase derives a new report from a prompt. The synthesis is
// deterministic text assembly standing in for an external agent call.
type BriefUseCase struct {
	tasks ports.TaskStore
	users ports.UserStore
	docs  ports.DocumentStore
	locks *UserLocks
	now   func() time.Time
}

func NewBriefUseCase(tasks ports.TaskStore, users ports.UserStore, docs ports.DocumentStore, locks *UserLocks) *BriefUseCase {
	if locks == nil {
		locks = NewUserLocks()
	}
	return &BriefUseCase{
		tasks: tasks,
		users: users,
		docs:  docs,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (uc *BriefUseCase) Invoke(ctx context.Context, userID, taskID, prompt string) (*domain.BriefTurn, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "invoke brief", errors.New("prompt is required"))
	}

	unlock := uc.locks.lock(userID)
	defer unlock()

	task, err := uc.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	processed, err := uc.docs.ListProcessedDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list processed evidence: %w", err)
	}

	now := uc.now()
	userMessage := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   prompt,
		CreatedAt: now,
	}
	if err := uc.tasks.AppendMessage(ctx, userID, taskID, userMessage); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	report := synthesizeReport(task.Report, prompt, processed, now)
	if err := uc.tasks.SaveReport(ctx, userID, taskID, report, now); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	agentMessage := domain.Message{
		ID:   uuid.NewString(),
		Role: domain.RoleAgent,
		Content: fmt.Sprintf(
			"I analyzed %q and updated the intelligence brief: a new findings section was added and the recommendations were refreshed.",
			prompt,
		),
		CreatedAt: now,
	}
	if err := uc.tasks.AppendMessage(ctx, userID, taskID, agentMessage); err != nil {
		return nil, fmt.Errorf("append agent message: %w", err)
	}

	if err := uc.users.TouchUser(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	return &domain.BriefTurn{
		AgentMessage: agentMessage,
		Report:       report,
		Insights:     buildInsights(prompt, len(processed)),
	}, nil
}

// ReplaceReport shallow-merges caller-supplied fields over the stored
// report. Field shapes are validated at the decoding boundary; unknown
// fields never reach this point.
func (uc *BriefUseCase) ReplaceReport(ctx context.Context, userID, taskID string, patch domain.ReportPatch) (*domain.Report, error) {
	unlock := uc.locks.lock(userID)
	defer unlock()

	task, err := uc.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	report := task.Report
	if patch.Title != nil {
		report.Title = *patch.Title
	}
	if patch.ExecutiveSummary != nil {
		report.ExecutiveSummary = *patch.ExecutiveSummary
	}
	if patch.Sections != nil {
		report.Sections = *patch.Sections
	}
	if patch.Recommendations != nil {
		report.Recommendations = *patch.Recommendations
	}
	if patch.NextSteps != nil {
		report.NextSteps = *patch.NextSteps
	}
	if patch.RevisionHistory != nil {
		report.RevisionHistory = *patch.RevisionHistory
	}

	now := uc.now()
	report.LastUpdated = now
	if err := uc.tasks.SaveReport(ctx, userID, taskID, report, now); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	if err := uc.users.TouchUser(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	return &report, nil
}

func synthesizeReport(prev domain.Report, prompt string, processed []domain.Document, at time.Time) domain.Report {
	report := prev

	evidenceBullet := noEvidenceBullet
	if len(processed) > 0 {
		names := make([]string, 0, len(processed))
		for _, doc := range processed {
			names = append(names, doc.OriginalName)
		}
		evidenceBullet = "Evidence reviewed: " + strings.Join(names, ", ")
	}

	report.Sections = append(append([]domain.Section(nil), prev.Sections...), domain.Section{
		Heading: truncateHeading(prompt, sectionHeadingBudget),
		Bullets: []string{
			"Key question: " + prompt,
			evidenceBullet,
			opportunityBullet,
			riskBullet,
		},
	})

	report.ExecutiveSummary = prev.ExecutiveSummary + fmt.Sprintf(
		"\n\nUpdate %s: analyzed %q and folded the findings into the sections below.",
		at.Format(summaryTimeLayout), prompt,
	)

	report.Recommendations = appendUnique(
		append([]string(nil), prev.Recommendations...),
		fmt.Sprintf("Validate the findings on %q with the account team.", prompt),
		fmt.Sprintf("Schedule a follow-up review of %q within two weeks.", prompt),
	)
	report.NextSteps = appendUnique(
		append([]string(nil), prev.NextSteps...),
		fmt.Sprintf("Collect additional evidence related to %q.", prompt),
	)

	report.LastUpdated = at
	report.RevisionHistory = append([]domain.Revision{{
		Timestamp:  at,
		Question:   prompt,
		Highlights: fmt.Sprintf("Added a findings section for %q and refreshed recommendations.", prompt),
	}}, prev.RevisionHistory...)

	return report
}

// appendUnique keeps list order and skips values already present
// verbatim. The list never shrinks.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		exists := false
		for _, existing := range list {
			if existing == v {
				exists = true
				break
			}
		}
		if !exists {
			list = append(list, v)
		}
	}
	return list
}

func truncateHeading(prompt string, budget int) string {
	runes := []rune(prompt)
	if len(runes) <= budget {
		return prompt
	}
	return strings.TrimSpace(string(runes[:budget])) + "..."
}

func buildInsights(prompt string, processedCount int) []string {
	evidence := "No processed evidence is available yet; upload supporting files to strengthen the brief."
	if processedCount > 0 {
		evidence = fmt.Sprintf("%d processed evidence file(s) informed this revision.", processedCount)
	}
	return []string{
		"The intelligence brief gained a new findings section for this turn.",
		fmt.Sprintf("Recommendations now cover %q; review the next steps for follow-up actions.", prompt),
		evidence,
	}
}
