package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

// literalArg parses an optional usda literal argument. Returns nil
// when the argument is absent or empty.
func literalArg(req mcp.CallToolRequest, key string) (any, *mcp.CallToolResult) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	v, err := sdftext.ParseValue(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return v, nil
}

func selectVariantTool() mcp.Tool {
	return mcp.NewTool("select_variant",
		mcp.WithDescription("Select a variant in one of the prim's variant sets."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("set", mcp.Required(), mcp.Description("Variant set name")),
		mcp.WithString("variant", mcp.Required(), mcp.Description("Variant to select")),
	)
}

func (s *Service) handleSelectVariant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	set, err := req.RequireString("set")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	variant, err := req.RequireString("variant")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.SelectVariant(p, set, variant)), nil
}

func setKindTool() mcp.Tool {
	return mcp.NewTool("set_kind",
		mcp.WithDescription("Set the kind metadata of a prim. An empty kind clears it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("kind", mcp.Description("Model kind"), mcp.Enum(scene.Kinds...)),
	)
}

func (s *Service) handleSetKind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(s.ed.SetKind(p, req.GetString("kind", ""))), nil
}

func setPurposeTool() mcp.Tool {
	return mcp.NewTool("set_purpose",
		mcp.WithDescription("Set the purpose of an imageable prim."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("purpose", mcp.Required(), mcp.Description("Render purpose"), mcp.Enum(scene.Purposes...)),
	)
}

func (s *Service) handleSetPurpose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	purpose, err := req.RequireString("purpose")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.SetPurpose(p, purpose)), nil
}

func loadPayloadTool() mcp.Tool {
	return mcp.NewTool("load_payload",
		mcp.WithDescription("Load the payload of a prim, bringing its descendants onto the stage."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path carrying the payload")),
	)
}

func (s *Service) handleLoadPayload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(s.ed.LoadPayload(p)), nil
}

func unloadPayloadTool() mcp.Tool {
	return mcp.NewTool("unload_payload",
		mcp.WithDescription("Unload the payload of a prim. Its descendants leave the stage until the payload is loaded again."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path carrying the payload")),
	)
}

func (s *Service) handleUnloadPayload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(s.ed.UnloadPayload(p)), nil
}

func addAttributeTool() mcp.Tool {
	return mcp.NewTool("add_attribute",
		mcp.WithDescription("Add a custom attribute to a prim. The optional default value uses usda literal syntax."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Attribute name")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Value type, e.g. float, double3, string")),
		mcp.WithString("value", mcp.Description("Default value in usda literal syntax")),
	)
}

func (s *Service) handleAddAttribute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typeName, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, errRes := literalArg(req, "value")
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(s.ed.AddAttribute(p, name, typeName, value)), nil
}

func removeAttributeTool() mcp.Tool {
	return mcp.NewTool("remove_attribute",
		mcp.WithDescription("Remove a custom attribute from a prim."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Attribute name")),
	)
}

func (s *Service) handleRemoveAttribute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.RemoveAttribute(p, name)), nil
}

func setAttributeTool() mcp.Tool {
	return mcp.NewTool("set_attribute",
		mcp.WithDescription("Set an attribute value, either the default or a sample at a given time."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Attribute name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value in usda literal syntax")),
		mcp.WithNumber("time", mcp.Description("Sample time; omit to set the default value")),
	)
}

func (s *Service) handleSetAttribute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, perr := sdftext.ParseValue(raw)
	if perr != nil {
		return mcp.NewToolResultError(perr.Error()), nil
	}
	var at *float64
	if arg, ok := req.GetArguments()["time"]; ok {
		switch v := arg.(type) {
		case float64:
			at = &v
		case int:
			f := float64(v)
			at = &f
		}
	}
	return toolResult(s.ed.SetAttributeValue(p, name, value, at)), nil
}

func addPrimvarTool() mcp.Tool {
	return mcp.NewTool("add_primvar",
		mcp.WithDescription("Add a primvar to a prim. The name is given without the primvars: prefix."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Primvar name without prefix")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Value type, e.g. color3f, texCoord2f[]")),
		mcp.WithString("value", mcp.Description("Value in usda literal syntax")),
		mcp.WithString("interpolation", mcp.Description("Interpolation, default constant"), mcp.Enum(scene.Interpolations...)),
	)
}

func (s *Service) handleAddPrimvar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typeName, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, errRes := literalArg(req, "value")
	if errRes != nil {
		return errRes, nil
	}
	interp := req.GetString("interpolation", "constant")
	return toolResult(s.ed.AddPrimvar(p, name, typeName, value, interp)), nil
}

func removePrimvarTool() mcp.Tool {
	return mcp.NewTool("remove_primvar",
		mcp.WithDescription("Remove a primvar from a prim."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Primvar name without prefix")),
	)
}

func (s *Service) handleRemovePrimvar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.RemovePrimvar(p, name)), nil
}

func replaceStageTextTool() mcp.Tool {
	return mcp.NewTool("replace_stage_text",
		mcp.WithDescription("Replace the entire stage from usda text. Text that does not parse is rejected and the stage stays untouched."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Complete usda document")),
	)
}

func (s *Service) handleReplaceStageText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.ReplaceFromText(text)), nil
}

func saveStageTool() mcp.Tool {
	return mcp.NewTool("save_stage",
		mcp.WithDescription("Save the stage back to disk, to the opened file or to an explicit target."),
		mcp.WithString("file", mcp.Description("Target file, default the opened stage file")),
	)
}

func (s *Service) handleSaveStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if file := req.GetString("file", ""); file != "" {
		return toolResult(s.ed.SaveFile(file)), nil
	}
	return toolResult(s.ed.Save()), nil
}
