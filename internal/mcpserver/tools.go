package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
)

var jsonOptions = ojg.Options{Sort: true, Indent: 2}

// Service holds the shared editor all tool handlers operate on. The
// MCP transport serializes tool calls, matching the editor's
// single-host ownership model.
type Service struct {
	ed *editor.Editor
}

// pathArg extracts and validates the "path" argument.
func (s *Service) pathArg(req mcp.CallToolRequest) (scene.Path, *mcp.CallToolResult) {
	raw, err := req.RequireString("path")
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	p, err := scene.ParsePath(raw)
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

// toolResult converts an editor result into a tool response: failures
// become error results so clients see them without a protocol error.
func toolResult(res editor.Result) *mcp.CallToolResult {
	if !res.OK {
		return mcp.NewToolResultError(res.Message)
	}
	return mcp.NewToolResultText(res.Message)
}

func resultJSON(v any) *mcp.CallToolResult {
	return mcp.NewToolResultText(oj.JSON(v, &jsonOptions))
}

// virtual renders the same JSON body the mount layers serve for the
// prim, so MCP clients and filesystem clients see identical documents.
func (s *Service) virtual(req mcp.CallToolRequest, file string) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	data, err := scene.RenderVirtual(s.ed.Reader(), p, file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// --- Stage lifecycle ---

func stageOpenTool() mcp.Tool {
	return mcp.NewTool("stage_open",
		mcp.WithDescription("Open a stage from a .usda text file or a .db/.sqlite stage database. Replaces the current stage; expansion and selection are restored from the session store."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path to the stage file on disk")),
	)
}

func (s *Service) handleStageOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(s.ed.LoadFile(file)), nil
}

func stageTextTool() mcp.Tool {
	return mcp.NewTool("stage_text",
		mcp.WithDescription("Return the full stage as usda text."),
	)
}

func (s *Service) handleStageText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.ed.ExportText()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Browsing ---

func stageTreeTool() mcp.Tool {
	return mcp.NewTool("stage_tree",
		mcp.WithDescription("List the prim hierarchy below a root path in authoring order. Each row reports path, name, depth below the root and whether children exist."),
		mcp.WithString("root", mcp.Description("Subtree root, default /")),
		mcp.WithNumber("depth", mcp.Description("Levels to descend, 0 for unlimited")),
	)
}

func (s *Service) handleStageTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := scene.ParsePath(req.GetString("root", scene.RootPath.String()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxDepth := req.GetInt("depth", 0)
	r := s.ed.Reader()

	children, err := r.Children(root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type frame struct {
		path  scene.Path
		depth int
	}
	stack := make([]frame, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, frame{children[i], 1})
	}
	rows := make([]any, 0, len(children))
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		has, err := r.HasChildren(f.path)
		if err != nil {
			continue
		}
		rows = append(rows, map[string]any{
			"path":        f.path.String(),
			"name":        f.path.Name(),
			"depth":       f.depth,
			"hasChildren": has,
		})
		if !has || (maxDepth > 0 && f.depth >= maxDepth) {
			continue
		}
		kids, err := r.Children(f.path)
		if err != nil {
			continue
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}
	return resultJSON(rows), nil
}

func nodeInfoTool() mcp.Tool {
	return mcp.NewTool("node_info",
		mcp.WithDescription("Return the info document of a prim: type, specifier, kind, purpose, active/defined/abstract/instanceable flags, variant and payload presence."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path, e.g. /world/geo/sphere")),
	)
}

func (s *Service) handleNodeInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.virtual(req, scene.VFileInfo)
}

func nodeAttributesTool() mcp.Tool {
	return mcp.NewTool("node_attributes",
		mcp.WithDescription("List the attributes of a prim with values and time samples."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
	)
}

func (s *Service) handleNodeAttributes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.virtual(req, scene.VFileAttributes)
}

func nodePrimvarsTool() mcp.Tool {
	return mcp.NewTool("node_primvars",
		mcp.WithDescription("List the primvars of a prim with interpolation, element size and indices."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
	)
}

func (s *Service) handleNodePrimvars(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.virtual(req, scene.VFilePrimvars)
}

func nodeVariantsTool() mcp.Tool {
	return mcp.NewTool("node_variants",
		mcp.WithDescription("List the variant sets of a prim with their variants and current selections."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
	)
}

func (s *Service) handleNodeVariants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.virtual(req, scene.VFileVariants)
}

func filterTreeTool() mcp.Tool {
	return mcp.NewTool("filter_tree",
		mcp.WithDescription("Filter the tree by case-insensitive substring on prim names and return the visible rows. Ancestors of matches stay visible and are expanded. An empty needle clears the filter."),
		mcp.WithString("needle", mcp.Description("Substring to match, empty to clear")),
	)
}

func (s *Service) handleFilterTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	proj := s.ed.Projection()
	if err := proj.Filter(ctx, req.GetString("needle", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows := make([]any, 0, proj.RowCount())
	for _, row := range proj.Rows() {
		rows = append(rows, map[string]any{
			"path":        row.Path.String(),
			"name":        row.Name,
			"depth":       row.Depth,
			"expanded":    row.Expanded,
			"hasChildren": row.HasChildren,
		})
	}
	return resultJSON(rows), nil
}

func selectNodeTool() mcp.Tool {
	return mcp.NewTool("select_node",
		mcp.WithDescription("Select a prim: expands its ancestors so the row is visible and records the selection for the session."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Prim path")),
	)
}

func (s *Service) handleSelectNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errRes := s.pathArg(req)
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(s.ed.Reveal(p)), nil
}
