// Package mcpserver exposes stage browsing and authoring over the
// Model Context Protocol. This is the composition root: it creates the
// server instance and registers every tool against a shared editor.
// No stage logic lives here — only wiring.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/voidreamer/maya-usd-author/internal/editor"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all stage tools
// registered. The caller owns the editor and closes it on shutdown.
func New(ed *editor.Editor) *server.MCPServer {
	s := server.NewMCPServer(
		"maya-usd-author",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	svc := &Service{ed: ed}

	// --- Stage lifecycle ---

	s.AddTool(stageOpenTool(), svc.handleStageOpen)
	s.AddTool(stageTextTool(), svc.handleStageText)
	s.AddTool(replaceStageTextTool(), svc.handleReplaceStageText)
	s.AddTool(saveStageTool(), svc.handleSaveStage)

	// --- Browsing ---

	s.AddTool(stageTreeTool(), svc.handleStageTree)
	s.AddTool(nodeInfoTool(), svc.handleNodeInfo)
	s.AddTool(nodeAttributesTool(), svc.handleNodeAttributes)
	s.AddTool(nodePrimvarsTool(), svc.handleNodePrimvars)
	s.AddTool(nodeVariantsTool(), svc.handleNodeVariants)
	s.AddTool(filterTreeTool(), svc.handleFilterTree)
	s.AddTool(selectNodeTool(), svc.handleSelectNode)

	// --- Authoring ---

	s.AddTool(selectVariantTool(), svc.handleSelectVariant)
	s.AddTool(setKindTool(), svc.handleSetKind)
	s.AddTool(setPurposeTool(), svc.handleSetPurpose)
	s.AddTool(loadPayloadTool(), svc.handleLoadPayload)
	s.AddTool(unloadPayloadTool(), svc.handleUnloadPayload)
	s.AddTool(addAttributeTool(), svc.handleAddAttribute)
	s.AddTool(removeAttributeTool(), svc.handleRemoveAttribute)
	s.AddTool(setAttributeTool(), svc.handleSetAttribute)
	s.AddTool(addPrimvarTool(), svc.handleAddPrimvar)
	s.AddTool(removePrimvarTool(), svc.handleRemovePrimvar)

	return s
}

// Serve runs the MCP server on stdin/stdout until the client hangs up.
func Serve(ed *editor.Editor) error {
	return server.ServeStdio(New(ed))
}

// serverInstructions tells the client how the stage tools fit together.
func serverInstructions() string {
	return `You have access to a USD stage authoring server.

## Workflow
1. Call stage_open with a .usda file (or a .db/.sqlite stage database).
2. Browse with stage_tree (depth-bounded), node_info, node_attributes,
   node_primvars and node_variants. Prim paths look like /world/geo/sphere.
3. Narrow large hierarchies with filter_tree — it matches prim names by
   case-insensitive substring and keeps every ancestor of a match
   visible and expanded.
4. Mutate with set_kind, set_purpose, select_variant, load_payload,
   unload_payload, add_attribute, set_attribute, remove_attribute,
   add_primvar and remove_primvar. Attribute values use usda literal
   syntax: 2.5, "red", [1, 2, 3], (0, 0, 1).
5. Persist with save_stage. stage_text returns the full usda text;
   replace_stage_text swaps the whole stage for new text and rejects
   text that does not parse, leaving the stage untouched.

## Notes
- Mutations answer with a one-line confirmation; failed ones return the
  provider's error and change nothing.
- Prims under an unloaded payload are not on the stage: reads on them
  fail until load_payload on the payload prim.
- select_node records a selection and expands ancestors, mirroring what
  a tree view host would show.`
}
