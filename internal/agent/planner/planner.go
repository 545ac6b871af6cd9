// Package planner turns a diagnosed equipment fault into a repair work order.
// It gathers skilled technicians and stocked parts from the document catalog,
// asks the model for a plan and stores the result in WorkOrders.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/model/document"
)

const (
	TechniciansCollection = "Technicians"
	PartsCollection       = "PartsInventory"
	WorkOrdersCollection  = "WorkOrders"
)

// Inventory reads the floor collections and stores work orders.
type Inventory interface {
	Documents(ctx context.Context, account, database, collection string) ([]document.Document, error)
	Insert(ctx context.Context, account, database, collection string, v any) error
}

// Config describes the planner agent.
type Config struct {
	Name         string
	Description  string
	Instructions string
	Account      string
	Database     string
	Inventory    Inventory
	Clock        func() time.Time
	NewID        func() string
}

// Agent plans one work order per run. Thread history is not sent to the
// model; each fault is planned on its own.
type Agent struct {
	name        string
	description string
	account     string
	database    string
	inventory   Inventory
	chain       compose.Runnable[string, *schema.Message]
	now         func() time.Time
	newID       func() string
}

// New compiles the prompt and model into a chain.
func New(ctx context.Context, chatModel model.BaseChatModel, cfg Config) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.Instructions == "" {
		return nil, fmt.Errorf("agent %s has no instructions", cfg.Name)
	}
	if cfg.Inventory == nil {
		return nil, fmt.Errorf("agent %s has no inventory", cfg.Name)
	}
	if cfg.Account == "" || cfg.Database == "" {
		return nil, fmt.Errorf("agent %s needs a document account and database", cfg.Name)
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instructions}"),
		schema.UserMessage("{request}"),
	)
	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, request string) (map[string]any, error) {
		return map[string]any{"instructions": cfg.Instructions, "request": request}, nil
	}))
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile planner chain: %w", err)
	}

	a := &Agent{
		name:        cfg.Name,
		description: cfg.Description,
		account:     cfg.Account,
		database:    cfg.Database,
		inventory:   cfg.Inventory,
		chain:       runnable,
		now:         cfg.Clock,
		newID:       cfg.NewID,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	return a, nil
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// Run reads a diagnosed fault JSON from the last input message and replies
// with the stored work order as JSON.
func (a *Agent) Run(ctx context.Context, input agent.Input, thread agent.Thread) (*agent.Response, error) {
	messages := input.Messages()
	fault, err := FaultFromMessages(messages)
	if err != nil {
		return nil, err
	}

	reply, err := a.reply(ctx, fault)
	if err != nil {
		return nil, err
	}

	if thread != nil {
		if err := thread.Append(ctx, append(messages, reply)...); err != nil {
			return nil, fmt.Errorf("failed to record reply on thread: %w", err)
		}
	}
	return &agent.Response{Messages: []*schema.Message{reply}}, nil
}

// RunStream plans in the background and yields the work order as a single
// chunk. An invalid fault is reported before any chunk is produced.
func (a *Agent) RunStream(ctx context.Context, input agent.Input, thread agent.Thread) (*schema.StreamReader[*schema.Message], error) {
	messages := input.Messages()
	fault, err := FaultFromMessages(messages)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer sw.Close()

		reply, err := a.reply(ctx, fault)
		if err != nil {
			sw.Send(nil, err)
			return
		}
		if closed := sw.Send(reply, nil); closed {
			return
		}
		if thread == nil {
			return
		}
		if err := thread.Append(ctx, append(messages, reply)...); err != nil {
			sw.Send(nil, fmt.Errorf("failed to record reply on thread: %w", err))
		}
	}()
	return sr, nil
}

func (a *Agent) reply(ctx context.Context, fault DiagnosedFault) (*schema.Message, error) {
	wo, err := a.Plan(ctx, fault)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(wo, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode work order: %w", err)
	}
	return schema.AssistantMessage(string(data), nil), nil
}

// Plan creates and stores the work order for fault.
func (a *Agent) Plan(ctx context.Context, fault DiagnosedFault) (*WorkOrder, error) {
	log.Printf("[planner] planning repair for fault %s on machine %s", fault.FaultType, fault.MachineID)

	res, err := a.gather(ctx, RequiredSkills(fault.FaultType), RequiredParts(fault.FaultType))
	if err != nil {
		return nil, err
	}
	log.Printf("[planner] found %d available technicians, %d parts in stock", len(res.technicians), len(res.parts))
	if len(res.missingParts) > 0 {
		log.Printf("[planner] missing parts in inventory: %s", strings.Join(res.missingParts, ", "))
	}

	request, err := buildPrompt(fault, res)
	if err != nil {
		return nil, err
	}

	msg, err := a.chain.Invoke(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to generate repair plan: %w", err)
	}

	var content string
	if msg != nil {
		content = msg.Content
	}
	wo, err := parseWorkOrder(content)
	if err != nil {
		log.Printf("[planner] failed to parse work order, using default: %v", err)
		wo = a.defaultWorkOrder(fault)
	}
	a.applyDefaults(wo, fault, res.technicians)

	if err := a.inventory.Insert(ctx, a.account, a.database, WorkOrdersCollection, wo); err != nil {
		return nil, fmt.Errorf("failed to save work order %s: %w", wo.WorkOrderNumber, err)
	}

	assignee := "(unassigned)"
	if wo.AssignedTo != nil {
		assignee = *wo.AssignedTo
	}
	log.Printf("[planner] created work order %s assigned to %s", wo.WorkOrderNumber, assignee)
	return wo, nil
}

// gather loads technicians and parts concurrently.
func (a *Agent) gather(ctx context.Context, skills, partNumbers []string) (resources, error) {
	var (
		wg          sync.WaitGroup
		technicians []Technician
		parts       []Part
		techErr     error
		partsErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		technicians, techErr = a.availableTechnicians(ctx, skills)
	}()
	go func() {
		defer wg.Done()
		parts, partsErr = a.partsByNumber(ctx, partNumbers)
	}()
	wg.Wait()

	if err := errors.Join(techErr, partsErr); err != nil {
		return resources{}, err
	}

	stocked := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		stocked[p.PartNumber] = struct{}{}
	}
	var missing []string
	for _, number := range partNumbers {
		if _, ok := stocked[number]; !ok {
			missing = append(missing, number)
		}
	}

	return resources{
		skills:       skills,
		technicians:  technicians,
		parts:        parts,
		missingParts: missing,
	}, nil
}

// availableTechnicians returns available technicians with at least one of
// skills, compared case-insensitively.
func (a *Agent) availableTechnicians(ctx context.Context, skills []string) ([]Technician, error) {
	docs, err := a.inventory.Documents(ctx, a.account, a.database, TechniciansCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to query technicians: %w", err)
	}
	var all []Technician
	if err := document.Decode(docs, &all); err != nil {
		return nil, err
	}

	var out []Technician
	for _, t := range all {
		if t.Available && matchingSkills(t.Skills, skills) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

// partsByNumber returns the inventory parts whose part number is listed.
func (a *Agent) partsByNumber(ctx context.Context, partNumbers []string) ([]Part, error) {
	if len(partNumbers) == 0 {
		return nil, nil
	}
	docs, err := a.inventory.Documents(ctx, a.account, a.database, PartsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	var all []Part
	if err := document.Decode(docs, &all); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(partNumbers))
	for _, number := range partNumbers {
		wanted[number] = struct{}{}
	}
	var out []Part
	for _, p := range all {
		if _, ok := wanted[p.PartNumber]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func parseWorkOrder(text string) (*WorkOrder, error) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, errors.New("empty model reply")
	}
	var wo WorkOrder
	if err := json.Unmarshal([]byte(body), &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

func (a *Agent) defaultWorkOrder(fault DiagnosedFault) *WorkOrder {
	return &WorkOrder{
		ID:          a.newID(),
		MachineID:   fault.MachineID,
		Title:       "Repair: " + fault.FaultType,
		Description: fault.Description,
		Type:        "corrective",
		Priority:    Priority(fault.Severity),
		Status:      "pending",
		FaultID:     fault.ID,
		Tasks:       []Task{},
		PartsUsed:   []PartUsage{},
	}
}

// applyDefaults links wo to fault and fills what the model left out. The
// priority always follows the fault severity, and the assignee must be one of
// technicians.
func (a *Agent) applyDefaults(wo *WorkOrder, fault DiagnosedFault, technicians []Technician) {
	if wo.ID == "" {
		wo.ID = a.newID()
	}
	wo.FaultID = fault.ID
	wo.MachineID = fault.MachineID
	if wo.Status == "" {
		wo.Status = "pending"
	}
	if wo.Type == "" {
		wo.Type = "corrective"
	}
	if wo.Tasks == nil {
		wo.Tasks = []Task{}
	}
	if wo.PartsUsed == nil {
		wo.PartsUsed = []PartUsage{}
	}
	wo.Priority = Priority(fault.Severity)

	now := a.now().UTC()
	if strings.TrimSpace(wo.WorkOrderNumber) == "" {
		wo.WorkOrderNumber = a.workOrderNumber(now)
	}

	if wo.AssignedTo != nil && strings.TrimSpace(*wo.AssignedTo) == "" {
		wo.AssignedTo = nil
	}
	switch {
	case len(technicians) == 0:
		wo.AssignedTo = nil
		wo.Status = "pending_assignment"
		wo.Notes = appendNote(wo.Notes, noTechnicianNote)
	case wo.AssignedTo != nil && !hasTechnician(technicians, *wo.AssignedTo):
		wo.AssignedTo = nil
		wo.Notes = appendNote(wo.Notes, reassignNote)
	}

	wo.CreatedAt = now
	wo.UpdatedAt = now
}

func (a *Agent) workOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(a.newID(), "-", "")
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return fmt.Sprintf("WO-%s-%s", now.Format("20060102"), strings.ToUpper(suffix))
}

func hasTechnician(technicians []Technician, id string) bool {
	for _, t := range technicians {
		if strings.EqualFold(t.ID, id) {
			return true
		}
	}
	return false
}

func appendNote(notes, note string) string {
	if strings.TrimSpace(notes) == "" {
		return note
	}
	return notes + "\n\n" + note
}

// FaultFromMessages decodes the diagnosed fault carried by the last message.
// The text may be wrapped in a code fence.
func FaultFromMessages(messages []*schema.Message) (DiagnosedFault, error) {
	if len(messages) == 0 {
		return DiagnosedFault{}, fmt.Errorf("%w: a diagnosed fault is required", agent.ErrInvalidInput)
	}
	text := stripCodeFence(agent.MessageText(messages[len(messages)-1]))

	var fault DiagnosedFault
	if err := json.Unmarshal([]byte(text), &fault); err != nil {
		return DiagnosedFault{}, fmt.Errorf("%w: diagnosed fault must be JSON: %v", agent.ErrInvalidInput, err)
	}
	if strings.TrimSpace(fault.FaultType) == "" {
		return DiagnosedFault{}, fmt.Errorf("%w: faultType is required", agent.ErrInvalidInput)
	}
	return fault, nil
}
