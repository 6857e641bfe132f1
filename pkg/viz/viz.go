// Package viz renders the change history of a scene document as a graph.
package viz

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"

	"github.com/astromechza/sketchy-calendar/pkg/scene"
)

// Entry describes one change and the scene as it was right after it.
type Entry struct {
	Hash      string
	Actor     string
	Seq       uint64
	Message   string
	Deps      []string
	Pages     int
	Cards     int
	Instances int
}

func (e Entry) label() string {
	actor := e.Actor
	if len(actor) > 8 {
		actor = actor[:8]
	}
	return fmt.Sprintf("%s %s@%d\n%s\npages=%d cards=%d instances=%d",
		e.Hash[:8], actor, e.Seq, e.Message, e.Pages, e.Cards, e.Instances)
}

// History lists every change of doc in causal order.
func History(doc *automerge.Doc) ([]Entry, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate changes: %w", err)
	}
	out := make([]Entry, 0, len(changes))
	for _, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		e := Entry{
			Hash:    change.Hash().String(),
			Actor:   change.ActorID(),
			Seq:     change.ActorSeq(),
			Message: change.Message(),
		}
		for _, hash := range change.Dependencies() {
			e.Deps = append(e.Deps, hash.String())
		}
		// Changes from before the root was seeded do not decode.
		if sc, err := scene.Decode(docAt); err == nil {
			e.Pages, e.Cards, e.Instances = len(sc.Pages), len(sc.Cards), len(sc.CardInstances)
		}
		out = append(out, e)
	}
	return out, nil
}

// Render writes the history of doc in the given graphviz format.
func Render(doc *automerge.Doc, format graphviz.Format) ([]byte, error) {
	entries, err := History(doc)
	if err != nil {
		return nil, err
	}

	g := graphviz.New()
	defer g.Close()
	graph, err := g.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	edges := 0
	for _, e := range entries {
		n, err := graph.CreateNode(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(e.label())
		for _, dep := range e.Deps {
			from, err := graph.Node(dep)
			if err != nil || from == nil {
				continue
			}
			edges++
			if _, err := graph.CreateEdge(strconv.Itoa(edges), from, n); err != nil {
				return nil, fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, format, &buff); err != nil {
		return nil, fmt.Errorf("failed to render: %w", err)
	}
	return buff.Bytes(), nil
}

func RenderToFile(doc *automerge.Doc, outputPath string) error {
	raw, err := Render(doc, graphviz.SVG)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

func RenderToTemp(doc *automerge.Doc) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderToFile(doc, tf); err != nil {
		return "", err
	}
	return tf, nil
}
