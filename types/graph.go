package types

import "context"

type NodeKind string

const (
	NodeText        NodeKind = "text"
	NodeImageConfig NodeKind = "imageConfig"
	NodeVideoConfig NodeKind = "videoConfig"
	NodeImage       NodeKind = "image"
	NodeVideo       NodeKind = "video"
	NodeLLMConfig   NodeKind = "llmConfig"
)

func (k NodeKind) IsConfig() bool {
	return k == NodeImageConfig || k == NodeVideoConfig || k == NodeLLMConfig
}

func (k NodeKind) IsOutput() bool {
	return k == NodeImage || k == NodeVideo
}

type EdgeKind string

const (
	EdgePlain       EdgeKind = ""
	EdgePromptOrder EdgeKind = "promptOrder"
	EdgeImageOrder  EdgeKind = "imageOrder"
)

const (
	HandleRight = "right"
	HandleLeft  = "left"
)

// Keys of Node.Data understood by the orchestrator and the backend.
const (
	KeyContent      = "content"
	KeyLabel        = "label"
	KeyModel        = "model"
	KeySize         = "size"
	KeyAutoExecute  = "autoExecute"
	KeyExecuted     = "executed"
	KeyOutputNodeID = "outputNodeId"
	KeyError        = "error"
	KeyURL          = "url"
	KeyLoading      = "loading"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     Data     `json:"data"`
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Data = n.Data.Clone()
	return &c
}

type Edge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty"`
	Kind         EdgeKind `json:"type,omitempty"`
	/**
	 * Order is only meaningful for promptOrder/imageOrder edges.
	 * The backend merges the inputs of one target by ascending Order,
	 * two edges of the same kind on one target never share an Order.
	 */
	Order int `json:"order,omitempty"`
}

type EdgeSpec struct {
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
	Kind         EdgeKind
	Order        int
}

/**
 * Graph is the only way the orchestrator affects or observes a pipeline.
 * Implementations own their consistency: a read is expected to observe the
 * latest committed mutation.
 */
type Graph interface {
	AddNode(ctx context.Context, kind NodeKind, pos Position, data Data) (string, error)
	AddEdge(ctx context.Context, spec EdgeSpec) (string, error)
	/**
	 * Node returns a snapshot of the node, errors.NotFound if it does not exist.
	 */
	Node(ctx context.Context, id string) (*Node, error)
	Nodes(ctx context.Context) ([]*Node, error)
	Edges(ctx context.Context) ([]*Edge, error)
	/**
	 * UpdateNode merges data into the node's data, a nil value removes the key.
	 */
	UpdateNode(ctx context.Context, id string, data Data) error
	/**
	 * OnNodeChange registers callback for every mutation of the node.
	 * The callback receives a snapshot and may run on any goroutine.
	 */
	OnNodeChange(id string, callback func(node *Node)) (unsubscribe func())
}
