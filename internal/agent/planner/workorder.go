package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DiagnosedFault is the upstream diagnosis a work order is planned for.
type DiagnosedFault struct {
	ID                 string    `json:"id"`
	MachineID          string    `json:"machineId"`
	MachineName        string    `json:"machineName"`
	FaultType          string    `json:"faultType"`
	Severity           string    `json:"severity"`
	Description        string    `json:"description"`
	RootCause          string    `json:"rootCause"`
	RecommendedActions []string  `json:"recommendedActions"`
	DiagnosedAt        time.Time `json:"diagnosedAt"`
}

// Technician is a record of the Technicians collection.
type Technician struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Department        string   `json:"department"`
	Skills            []string `json:"skills"`
	Certifications    []string `json:"certifications"`
	Available         bool     `json:"available"`
	CurrentAssignment string   `json:"currentAssignment,omitempty"`
	ShiftStart        string   `json:"shiftStart"`
	ShiftEnd          string   `json:"shiftEnd"`
}

// UnmarshalJSON treats a technician without an availability flag as available
// on the day shift.
func (t *Technician) UnmarshalJSON(data []byte) error {
	type plain Technician
	p := plain{Available: true, ShiftStart: "08:00", ShiftEnd: "16:00"}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Technician(p)
	return nil
}

// Part is a record of the PartsInventory collection.
type Part struct {
	ID                 string   `json:"id"`
	PartNumber         string   `json:"partNumber"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category"`
	QuantityInStock    int      `json:"quantityInStock"`
	ReorderLevel       int      `json:"reorderLevel"`
	UnitCost           float64  `json:"unitCost"`
	Location           string   `json:"location"`
	CompatibleMachines []string `json:"compatibleMachines,omitempty"`
}

// WorkOrder is the planned repair, stored in the WorkOrders collection.
type WorkOrder struct {
	ID                string      `json:"id"`
	WorkOrderNumber   string      `json:"workOrderNumber"`
	MachineID         string      `json:"machineId"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Type              string      `json:"type"`
	Priority          string      `json:"priority"`
	Status            string      `json:"status"`
	AssignedTo        *string     `json:"assignedTo"`
	Notes             string      `json:"notes"`
	EstimatedDuration FlexInt     `json:"estimatedDuration"`
	PartsUsed         []PartUsage `json:"partsUsed"`
	Tasks             []Task      `json:"tasks"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	FaultID           string      `json:"faultId"`
}

// PartUsage reserves a quantity of one inventory part.
type PartUsage struct {
	PartID     string  `json:"partId"`
	PartNumber string  `json:"partNumber"`
	Quantity   FlexInt `json:"quantity"`
}

// UnmarshalJSON defaults the quantity to one.
func (p *PartUsage) UnmarshalJSON(data []byte) error {
	type plain PartUsage
	u := plain{Quantity: 1}
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*p = PartUsage(u)
	return nil
}

// Task is one step of a work order.
type Task struct {
	Sequence                 FlexInt    `json:"sequence"`
	Title                    string     `json:"title"`
	Description              string     `json:"description"`
	EstimatedDurationMinutes FlexInt    `json:"estimatedDurationMinutes"`
	RequiredSkills           StringList `json:"requiredSkills"`
	SafetyNotes              string     `json:"safetyNotes"`
}

// FlexInt is an integer that also decodes from a numeric string, since model
// output sometimes quotes numbers.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*n = 0
		return nil
	}
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*n = 0
			return nil
		}
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", raw)
	}
	*n = FlexInt(math.Round(val))
	return nil
}

// StringList decodes from either a single string or an array of strings.
// Empty entries are dropped.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(raw, []byte("null")):
		*l = StringList{}
		return nil
	case len(raw) > 0 && raw[0] == '"':
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return err
		}
		if one == "" {
			*l = StringList{}
		} else {
			*l = StringList{one}
		}
		return nil
	case len(raw) > 0 && raw[0] == '[':
		var items []*string
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		out := make(StringList, 0, len(items))
		for _, item := range items {
			if item != nil && *item != "" {
				out = append(out, *item)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("expected string or array, got %s", raw)
	}
}

// Priority maps a fault severity to a work order priority. Unknown severities
// get medium.
func Priority(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical", "severe", "emergency":
		return "critical"
	case "high":
		return "high"
	case "medium", "warning", "moderate":
		return "medium"
	case "low", "minor", "informational", "info":
		return "low"
	default:
		return "medium"
	}
}

// stripCodeFence removes a surrounding ``` block, with or without a language
// tag.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i > 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
