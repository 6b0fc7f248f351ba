// Package patcher rewrites the hidden identifier field of catalog entry blocks.
package patcher

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/aluiziolira/go-sku-patch/parser"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockObserver is notified of the action taken on every entry block.
type BlockObserver interface {
	ObserveBlock(action models.Action)
}

// Patcher applies a Mapping to entry blocks of a catalog document.
type Patcher struct {
	items  cascadia.Selector
	images cascadia.Selector
	forms  cascadia.Selector
	inputs cascadia.Selector

	legacyField string
	targetField string
	observer    BlockObserver
}

// New compiles the selectors in cfg. observer may be nil.
func New(cfg *config.Config, observer BlockObserver) (*Patcher, error) {
	items, err := cascadia.Compile(cfg.ItemSelector)
	if err != nil {
		return nil, fmt.Errorf("compile item selector: %w", err)
	}
	images, err := cascadia.Compile(cfg.ImageSelector)
	if err != nil {
		return nil, fmt.Errorf("compile image selector: %w", err)
	}
	forms, err := cascadia.Compile(cfg.FormSelector)
	if err != nil {
		return nil, fmt.Errorf("compile form selector: %w", err)
	}

	return &Patcher{
		items:       items,
		images:      images,
		forms:       forms,
		inputs:      cascadia.MustCompile("input"),
		legacyField: cfg.LegacyField,
		targetField: cfg.TargetField,
		observer:    observer,
	}, nil
}

// Update patches every entry block of doc in document order and returns one
// outcome per block. doc is mutated in place.
func (p *Patcher) Update(doc *goquery.Document, m models.Mapping) []models.BlockOutcome {
	blocks := doc.FindMatcher(p.items)
	outcomes := make([]models.BlockOutcome, 0, blocks.Length())

	blocks.Each(func(i int, s *goquery.Selection) {
		outcome := p.patchBlock(Element{sel: s}, m)
		outcome.Index = i
		outcomes = append(outcomes, outcome)

		if p.observer != nil {
			p.observer.ObserveBlock(outcome.Action)
		}
		slog.Debug("entry block processed",
			slog.Int("index", i),
			slog.String("tone", outcome.Tone),
			slog.String("sku_id", outcome.SKUID),
			slog.String("action", string(outcome.Action)),
		)
	})

	return outcomes
}

func (p *Patcher) patchBlock(block Element, m models.Mapping) models.BlockOutcome {
	img := block.FindFirst(p.images)
	if !img.Exists() {
		return models.BlockOutcome{Action: models.ActionSkippedNoImage}
	}

	alt, _ := img.Attr("alt")
	src, _ := img.Attr("src")
	tone, ok := parser.ToneOf(alt, src)
	if !ok {
		return models.BlockOutcome{Action: models.ActionSkippedNoTone}
	}

	id, ok := m.Lookup(tone)
	if !ok {
		return models.BlockOutcome{Tone: tone, Action: models.ActionSkippedUnmapped}
	}
	outcome := models.BlockOutcome{Tone: tone, SKUID: id}

	if field := block.FindFirstWithAttr(p.inputs, "name", p.legacyField); field.Exists() {
		field.SetAttr("name", p.targetField)
		field.SetAttr("value", id)
		outcome.Action = models.ActionRenamed
		return outcome
	}

	// A block patched by an earlier run already carries the target field.
	if field := block.FindFirstWithAttr(p.inputs, "name", p.targetField); field.Exists() {
		field.SetAttr("value", id)
		outcome.Action = models.ActionUpdated
		return outcome
	}

	target := block.FindFirst(p.forms)
	if !target.Exists() {
		target = block
	}
	target.InsertChildAt(0, p.hiddenField(id))
	outcome.Action = models.ActionInserted
	return outcome
}

func (p *Patcher) hiddenField(id string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Input.String(),
		DataAtom: atom.Input,
		Attr: []html.Attribute{
			{Key: "type", Val: "hidden"},
			{Key: "name", Val: p.targetField},
			{Key: "value", Val: id},
		},
	}
}

// Parse reads a full markup document.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, models.ParseError{Source: "html", Err: err}
	}
	return doc, nil
}

// Render serializes the full document.
func Render(w io.Writer, doc *goquery.Document) error {
	if doc == nil || len(doc.Nodes) == 0 {
		return fmt.Errorf("render: empty document")
	}
	if err := html.Render(w, doc.Nodes[0]); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
