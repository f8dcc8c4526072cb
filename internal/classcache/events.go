package classcache

import "fmt"

// NodeEventType classifies what happened to a node.
type NodeEventType string

const (
	NodeNew     NodeEventType = "NEW"
	NodeChanged NodeEventType = "CHANGED"
	NodeRemoved NodeEventType = "REMOVED"
)

// NodeEventDetail refines a NodeEvent. REMOVED events carry no detail.
type NodeEventDetail string

const (
	DetailInitialized          NodeEventDetail = "INITIALIZED"
	DetailNotInitialized       NodeEventDetail = "NOT_INITIALIZED"
	DetailHashAdded            NodeEventDetail = "HASH_ADDED"
	DetailModifiersChanged     NodeEventDetail = "MODIFIERS_CHANGED"
	DetailMethodChangedOrAdded NodeEventDetail = "METHOD_CHANGED_OR_ADDED"
)

// ReferenceKind is the kind of a type-level forward reference.
type ReferenceKind string

const (
	RefSuperClass       ReferenceKind = "SUPERCLASS"
	RefSuperInterface   ReferenceKind = "SUPERINTERFACE"
	RefRealizeInterface ReferenceKind = "REALIZE_INTERFACE"
	RefAnnotation       ReferenceKind = "ANNOTATION"
)

// NodeEvent reports the creation, change or removal of a node.
type NodeEvent struct {
	Node   *Type
	Type   NodeEventType
	Detail NodeEventDetail
}

func (e NodeEvent) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s(%s)", e.Type, e.Node.FQN())
	}
	return fmt.Sprintf("%s(%s, %s)", e.Type, e.Node.FQN(), e.Detail)
}

// ReferenceEvent reports a forward reference added from Owner to Referred.
type ReferenceEvent struct {
	Owner    *Type
	Referred *Type
	Kind     ReferenceKind
}

func (e ReferenceEvent) String() string {
	return fmt.Sprintf("%s(%s -> %s)", e.Kind, e.Owner.FQN(), e.Referred.FQN())
}

// Event holds exactly one of Node or Reference.
type Event struct {
	Node      *NodeEvent
	Reference *ReferenceEvent
}

func (e Event) String() string {
	if e.Node != nil {
		return e.Node.String()
	}
	if e.Reference != nil {
		return e.Reference.String()
	}
	return "<empty>"
}

// Events is the ordered batch produced by one merge.
type Events []Event

// Empty reports whether the batch holds no events.
func (es Events) Empty() bool {
	return len(es) == 0
}

// NodeEvents returns the node events in emission order.
func (es Events) NodeEvents() []NodeEvent {
	var out []NodeEvent
	for _, e := range es {
		if e.Node != nil {
			out = append(out, *e.Node)
		}
	}
	return out
}

// ReferenceEvents returns the reference events in emission order.
func (es Events) ReferenceEvents() []ReferenceEvent {
	var out []ReferenceEvent
	for _, e := range es {
		if e.Reference != nil {
			out = append(out, *e.Reference)
		}
	}
	return out
}

// Strings renders every event, mostly for logs and test diffs.
func (es Events) Strings() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}

// NodeChangeListener observes graph mutations. Listeners are invoked
// synchronously while the cache's write lock is held and must not call back
// into the cache's locking methods.
type NodeChangeListener interface {
	InformNodeChange(NodeEvent)
	InformReferenceChange(ReferenceEvent)
}
