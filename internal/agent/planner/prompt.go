package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	noTechnicianWarning = "WARNING: No technicians are currently available with the required skills. " +
		"Leave assignedTo as null. Add a note about needing to find qualified personnel."
	noTechnicianNote = "⚠️ ATTENTION: No technicians with required skills are currently available. " +
		"Manual assignment required once personnel become available."
	reassignNote = "Note: Originally assigned technician was not available; reassignment needed."
)

type technicianSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Skills         []string `json:"skills"`
	Department     string   `json:"department"`
	MatchingSkills int      `json:"matchingSkills"`
}

type partSummary struct {
	ID              string `json:"id"`
	PartNumber      string `json:"partNumber"`
	Name            string `json:"name"`
	QuantityInStock int    `json:"quantityInStock"`
	Location        string `json:"location"`
}

// resources is what the floor can offer for one fault.
type resources struct {
	skills       []string
	technicians  []Technician
	parts        []Part
	missingParts []string
}

func (r resources) warnings() []string {
	var out []string
	if len(r.technicians) == 0 {
		out = append(out, noTechnicianWarning)
	}
	if len(r.missingParts) > 0 {
		out = append(out, fmt.Sprintf(
			"WARNING: The following required parts are not in stock: %s. Include a note about ordering these parts.",
			strings.Join(r.missingParts, ", ")))
	}
	return out
}

// buildPrompt renders the user turn sent to the model for fault.
func buildPrompt(fault DiagnosedFault, res resources) (string, error) {
	var b strings.Builder
	b.WriteString("Create a repair work order for the following diagnosed fault:\n\n")

	b.WriteString("## Fault Details\n")
	fmt.Fprintf(&b, "- Fault ID: %s\n", fault.ID)
	fmt.Fprintf(&b, "- Machine ID: %s\n", fault.MachineID)
	fmt.Fprintf(&b, "- Machine Name: %s\n", fault.MachineName)
	fmt.Fprintf(&b, "- Fault Type: %s\n", fault.FaultType)
	fmt.Fprintf(&b, "- Severity: %s\n", fault.Severity)
	fmt.Fprintf(&b, "- Description: %s\n", fault.Description)
	fmt.Fprintf(&b, "- Root Cause: %s\n", fault.RootCause)
	fmt.Fprintf(&b, "- Recommended Actions: %s\n", strings.Join(fault.RecommendedActions, "; "))
	fmt.Fprintf(&b, "- Diagnosed At: %s UTC\n\n", fault.DiagnosedAt.UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## Available Technicians\n")
	if len(res.technicians) == 0 {
		b.WriteString("(No technicians available)\n\n")
	} else {
		summaries := make([]technicianSummary, 0, len(res.technicians))
		for _, t := range res.technicians {
			summaries = append(summaries, technicianSummary{
				ID:             t.ID,
				Name:           t.Name,
				Skills:         t.Skills,
				Department:     t.Department,
				MatchingSkills: matchingSkills(t.Skills, res.skills),
			})
		}
		if err := writeJSON(&b, summaries); err != nil {
			return "", err
		}
	}

	b.WriteString("## Parts Inventory\n")
	if len(res.parts) == 0 {
		b.WriteString("(No parts in inventory)\n\n")
	} else {
		summaries := make([]partSummary, 0, len(res.parts))
		for _, p := range res.parts {
			summaries = append(summaries, partSummary{
				ID:              p.ID,
				PartNumber:      p.PartNumber,
				Name:            p.Name,
				QuantityInStock: p.QuantityInStock,
				Location:        p.Location,
			})
		}
		if err := writeJSON(&b, summaries); err != nil {
			return "", err
		}
	}

	b.WriteString("## Required Skills for this Fault Type\n")
	b.WriteString(strings.Join(res.skills, ", "))
	b.WriteString("\n\n")

	if warnings := res.warnings(); len(warnings) > 0 {
		b.WriteString("## ⚠️ Warnings\n")
		for _, w := range warnings {
			b.WriteString(w)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Generate a complete work order JSON response.")
	return b.String(), nil
}

func writeJSON(b *strings.Builder, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode prompt section: %w", err)
	}
	b.Write(data)
	b.WriteString("\n\n")
	return nil
}

// matchingSkills counts the skills of a technician that appear in required,
// ignoring case.
func matchingSkills(skills, required []string) int {
	n := 0
	for _, s := range skills {
		for _, r := range required {
			if strings.EqualFold(s, r) {
				n++
				break
			}
		}
	}
	return n
}
