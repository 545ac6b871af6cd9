package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gold-agents/backend/internal/model/document"
)

// DocumentQueryTool is the project-connected tool the instructions tell the
// model to call for maintenance windows.
const DocumentQueryTool = "Get_all_documents_V3"

// DocumentSource serves whole collections to the document tool.
type DocumentSource interface {
	Documents(ctx context.Context, account, database, collection string) ([]document.Document, error)
}

// Tools builds the tool declarations for cfg. Without a connection id or a
// document source there are none.
func Tools(cfg Config) []*schema.ToolInfo {
	if cfg.ToolConnectionID == "" || cfg.Documents == nil {
		return nil
	}
	return []*schema.ToolInfo{documentToolInfo(cfg)}
}

func documentToolInfo(cfg Config) *schema.ToolInfo {
	desc := fmt.Sprintf("Returns every document of a Cosmos DB collection via project connection %s", cfg.ToolConnectionID)
	if cfg.ProjectEndpoint != "" {
		desc += fmt.Sprintf(" on %s", cfg.ProjectEndpoint)
	}

	return &schema.ToolInfo{
		Name: DocumentQueryTool,
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"cosmosDbAccountName": {
				Type:     schema.String,
				Desc:     "Cosmos DB account name",
				Required: true,
			},
			"databaseId": {
				Type:     schema.String,
				Desc:     "Database identifier",
				Required: true,
			},
			"collectionId": {
				Type:     schema.String,
				Desc:     "Collection identifier",
				Required: true,
			},
		}),
	}
}

type documentQuery struct {
	Account    string `json:"cosmosDbAccountName"`
	Database   string `json:"databaseId"`
	Collection string `json:"collectionId"`
}

// documentTool answers Get_all_documents_V3 calls from a DocumentSource.
type documentTool struct {
	info   *schema.ToolInfo
	source DocumentSource
}

var _ tool.InvokableTool = (*documentTool)(nil)

func newDocumentTool(cfg Config) *documentTool {
	return &documentTool{info: documentToolInfo(cfg), source: cfg.Documents}
}

func (t *documentTool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// InvokableRun returns the collection as a JSON array. Bad arguments and
// unknown collections are reported to the model as a JSON error object so it
// can correct the call; only source failures abort the run.
func (t *documentTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var q documentQuery
	if err := json.Unmarshal([]byte(argumentsInJSON), &q); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if q.Account == "" || q.Database == "" || q.Collection == "" {
		return toolError("cosmosDbAccountName, databaseId and collectionId are required")
	}

	docs, err := t.source.Documents(ctx, q.Account, q.Database, q.Collection)
	if errors.Is(err, document.ErrCollectionNotFound) {
		return toolError(err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s: %w", q.Database, q.Collection, err)
	}

	out, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("failed to encode documents: %w", err)
	}
	log.Printf("[scheduler] %s returned %d documents from %s/%s", DocumentQueryTool, len(docs), q.Database, q.Collection)
	return string(out), nil
}

func toolError(msg string) (string, error) {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
