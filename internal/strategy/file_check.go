package strategy

import (
	"context"

	"github.com/santosrai/flowgrid/internal/pipeline"
	"github.com/santosrai/flowgrid/internal/schema"
	"github.com/santosrai/flowgrid/internal/template"
)

// fileCheckStrategy validates that the node's config identifies a file and
// passes a structured descriptor downstream. No filesystem access happens
// here; files live with the hosting application's upload storage.
type fileCheckStrategy struct {
	resolver *template.Resolver
}

func (s *fileCheckStrategy) Type() string { return schema.StrategyFileCheck }

func (s *fileCheckStrategy) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	tctx := ec.TemplateContext()
	tctx.Config = effectiveConfig(ec)

	identifying := ec.Definition.Execution.StringField("identifying_field")
	if identifying == "" {
		identifying = "filename"
	}

	filename := template.Stringify(s.resolver.Resolve(tctx.Config[identifying], tctx))
	if filename == "" {
		return nil, &pipeline.ConfigurationError{
			NodeID: ec.Node.ID,
			Field:  identifying,
			Msg:    "no file selected",
			Hint:   "choose a file in the node settings",
		}
	}

	descriptorType := ec.Definition.Execution.StringField("descriptor_type")
	if descriptorType == "" {
		descriptorType = "file"
	}

	descriptor := map[string]any{
		"type":     descriptorType,
		"filename": filename,
	}
	if id := template.Stringify(s.resolver.Resolve(tctx.Config["file_id"], tctx)); id != "" {
		descriptor["fileId"] = id
	}
	if url := template.Stringify(s.resolver.Resolve(tctx.Config["file_url"], tctx)); url != "" {
		descriptor["fileUrl"] = url
	}

	return &Result{Data: descriptor}, nil
}
