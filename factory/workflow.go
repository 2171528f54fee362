package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

type WorkflowJSON struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Process      string     `json:"process"`
	SubProcesses []string   `json:"subProcesses,omitempty"`
	Steps        []StepJSON `json:"steps"`
}

type StepJSON struct {
	Title        string   `json:"title"`
	RoleIDs      []string `json:"roleIds,omitempty"`
	AutoApproval bool     `json:"autoApproval,omitempty"`
	Days         int      `json:"days,omitempty"`
	Hours        int      `json:"hours,omitempty"`
}

// ParseWorkflow parses and validates a workflow definition for orgID.
func (f *Factory) ParseWorkflow(orgID generic.OrgID, data []byte) (leave.Workflow, error) {
	var wj WorkflowJSON
	if err := json.Unmarshal(data, &wj); err != nil {
		return leave.Workflow{}, fmt.Errorf("%w: failed to parse workflow JSON: %s", generic.ErrInvalidInput, err)
	}
	return f.WorkflowFromJSON(orgID, wj)
}

func (f *Factory) WorkflowFromJSON(orgID generic.OrgID, wj WorkflowJSON) (leave.Workflow, error) {
	if wj.ID == "" {
		return leave.Workflow{}, fmt.Errorf("%w: workflow id is required", generic.ErrInvalidInput)
	}
	process := leave.Process(wj.Process)
	switch process {
	case leave.ProcessLeave, leave.ProcessPTO, leave.ProcessCompOff:
	default:
		return leave.Workflow{}, fmt.Errorf("%w: unknown process %q", generic.ErrInvalidInput, wj.Process)
	}

	w := leave.Workflow{
		ID:      wj.ID,
		OrgID:   orgID,
		Name:    wj.Name,
		Process: process,
	}
	for _, sp := range wj.SubProcesses {
		w.SubProcesses = append(w.SubProcesses, generic.LeaveTypeID(sp))
	}
	for i, sj := range wj.Steps {
		if sj.Days < 0 || sj.Hours < 0 {
			return leave.Workflow{}, fmt.Errorf("%w: step %d has a negative delay", generic.ErrInvalidInput, i+1)
		}
		if !sj.AutoApproval && (sj.Days > 0 || sj.Hours > 0) {
			return leave.Workflow{}, fmt.Errorf("%w: step %d has a delay but no autoApproval", generic.ErrInvalidInput, i+1)
		}
		title := sj.Title
		if title == "" {
			title = fmt.Sprintf("Step %d", i+1)
		}
		w.Steps = append(w.Steps, leave.WorkflowStep{
			Title:        title,
			RoleIDs:      append([]string(nil), sj.RoleIDs...),
			AutoApproval: sj.AutoApproval,
			Days:         sj.Days,
			Hours:        sj.Hours,
		})
	}
	return w, nil
}

func (f *Factory) WorkflowToJSON(w leave.Workflow) WorkflowJSON {
	wj := WorkflowJSON{ID: w.ID, Name: w.Name, Process: string(w.Process), Steps: []StepJSON{}}
	for _, sp := range w.SubProcesses {
		wj.SubProcesses = append(wj.SubProcesses, string(sp))
	}
	for _, s := range w.Steps {
		wj.Steps = append(wj.Steps, StepJSON{
			Title:        s.Title,
			RoleIDs:      s.RoleIDs,
			AutoApproval: s.AutoApproval,
			Days:         s.Days,
			Hours:        s.Hours,
		})
	}
	return wj
}
